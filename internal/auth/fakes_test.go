package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/user"
)

// fakeDirectory is an in-memory UserDirectory mirroring the repository's
// guarded-update semantics, so service tests exercise the same race handling
// as the real store.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[uuid.UUID]*user.User)}
}

func (d *fakeDirectory) clone(u *user.User) *user.User {
	c := *u
	return &c
}

func (d *fakeDirectory) Create(_ context.Context, u *user.User) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.users {
		if existing.Email == u.Email {
			return nil, user.ErrDuplicateEmail
		}
	}

	stored := d.clone(u)
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	d.users[stored.ID] = stored
	return d.clone(stored), nil
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Email == email {
			return d.clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (d *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return d.clone(u), nil
}

func (d *fakeDirectory) GetByProvider(_ context.Context, provider user.Provider, providerID string) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			return d.clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (d *fakeDirectory) GetByVerificationToken(_ context.Context, token string, now time.Time) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.EmailVerificationToken != nil && *u.EmailVerificationToken == token &&
			u.EmailVerificationExp != nil && u.EmailVerificationExp.After(now) {
			return d.clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (d *fakeDirectory) MarkEmailVerified(_ context.Context, userID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok || u.EmailVerified {
		return user.ErrNotFound
	}
	u.EmailVerified = true
	u.EmailVerificationToken = nil
	u.EmailVerificationExp = nil
	return nil
}

func (d *fakeDirectory) UpdateVerificationToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok || u.EmailVerified {
		return user.ErrNotFound
	}
	u.EmailVerificationToken = &token
	u.EmailVerificationExp = &expiresAt
	return nil
}

func (d *fakeDirectory) SetPasswordResetToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordResetToken = &tokenHash
	u.PasswordResetExp = &expiresAt
	return nil
}

func (d *fakeDirectory) ListActiveResetRequests(_ context.Context, now time.Time) ([]*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*user.User
	for _, u := range d.users {
		if u.PasswordResetToken != nil && u.PasswordResetExp != nil && u.PasswordResetExp.After(now) {
			out = append(out, d.clone(u))
		}
	}
	return out, nil
}

func (d *fakeDirectory) CompletePasswordReset(_ context.Context, userID uuid.UUID, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok || u.PasswordResetToken == nil {
		return user.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	u.PasswordResetToken = nil
	u.PasswordResetExp = nil
	return nil
}

// expireVerificationToken backdates the stored expiry for a user, for tests
// covering expired tokens.
func (d *fakeDirectory) expireVerificationToken(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Email == email && u.EmailVerificationExp != nil {
			past := time.Now().Add(-time.Minute)
			u.EmailVerificationExp = &past
		}
	}
}

func (d *fakeDirectory) expireResetToken(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Email == email && u.PasswordResetExp != nil {
			past := time.Now().Add(-time.Minute)
			u.PasswordResetExp = &past
		}
	}
}

// fakeRefreshRepo is an in-memory RefreshTokenRepository.
type fakeRefreshRepo struct {
	mu      sync.Mutex
	tokens  map[string]*RefreshToken // keyed by token hash
	revoked map[string]bool
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{
		tokens:  make(map[string]*RefreshToken),
		revoked: make(map[string]bool),
	}
}

func (r *fakeRefreshRepo) StoreRefreshToken(_ context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := hashToken(token)
	r.tokens[hash] = &RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *fakeRefreshRepo) GetRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := hashToken(token)
	if r.revoked[hash] {
		return nil, ErrRefreshTokenRevoked
	}
	rt, ok := r.tokens[hash]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}
	copied := *rt
	return &copied, nil
}

func (r *fakeRefreshRepo) RevokeRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := hashToken(token)
	if _, ok := r.tokens[hash]; !ok {
		return ErrRefreshTokenNotFound
	}
	r.revoked[hash] = true
	return nil
}

func (r *fakeRefreshRepo) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, rt := range r.tokens {
		if rt.UserID == userID {
			r.revoked[hash] = true
		}
	}
	return nil
}

type sentEmail struct {
	To    string
	Token string
}

// fakeEmailService captures sends on channels so tests can wait for the
// asynchronous dispatch without sleeping.
type fakeEmailService struct {
	verifications chan sentEmail
	resets        chan sentEmail
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{
		verifications: make(chan sentEmail, 16),
		resets:        make(chan sentEmail, 16),
	}
}

func (e *fakeEmailService) SendVerificationEmail(_ context.Context, toEmail, token string) error {
	e.verifications <- sentEmail{To: toEmail, Token: token}
	return nil
}

func (e *fakeEmailService) SendPasswordResetEmail(_ context.Context, toEmail, token string) error {
	e.resets <- sentEmail{To: toEmail, Token: token}
	return nil
}
