package httputil

// Machine-readable error codes returned alongside human messages so clients
// can branch without parsing English.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeInternalError      = "internal_error"
	CodeTooManyRequests    = "too_many_requests"
	CodeCooldownActive     = "cooldown_active"

	// Registration / validation
	CodeNameRequired       = "name_required"
	CodeEmailRequired      = "email_required"
	CodePasswordRequired   = "password_required"
	CodePasswordTooShort   = "password_too_short"
	CodeInvalidEmailFormat = "invalid_email_format"
	CodeEmailAlreadyExists = "email_already_exists"
	CodeProviderMismatch   = "provider_mismatch"

	// Login / session
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotVerified   = "email_not_verified"
	CodeMissingAuth        = "missing_auth"
	CodeInvalidAuthHeader  = "invalid_auth_header"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeInvalidTokenUserID = "invalid_token_user_id"
	CodeUserNotFound       = "user_not_found"
	CodeForbidden          = "forbidden"

	// Refresh
	CodeRefreshTokenRequired = "refresh_token_required"
	CodeInvalidRefreshToken  = "invalid_refresh_token"

	// Email verification
	CodeVerificationTokenRequired = "verification_token_required"
	CodeVerificationFailed        = "verification_failed"
	CodeAlreadyVerified           = "already_verified"
	CodeResendRejected            = "resend_rejected"

	// Password reset
	CodeInvalidResetToken = "invalid_reset_token"

	// OAuth
	CodeOAuthFailed     = "oauth_failed"
	CodeAccountConflict = "account_conflict"

	// User management
	CodeInvalidRole = "invalid_role"
)
