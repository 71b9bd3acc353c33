package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// defaultMaxRequests is the per-IP request budget within the window.
	defaultMaxRequests = 10
	// defaultWindow is the fixed rate limit window.
	defaultWindow = 15 * time.Minute
	// defaultEmailCooldown spaces out emails to the same address.
	defaultEmailCooldown = 60 * time.Second
)

// Limiter implements fixed-window rate limiting on Redis. Counters expire on
// their own, so a quiet IP costs nothing.
type Limiter struct {
	client        *redis.Client
	maxRequests   int
	window        time.Duration
	emailCooldown time.Duration
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{
		client:        client,
		maxRequests:   defaultMaxRequests,
		window:        defaultWindow,
		emailCooldown: defaultEmailCooldown,
	}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailCooldownKey(email string) string {
	return fmt.Sprintf("ratelimit:email_cooldown:%s", email)
}

// CheckIPRateLimit reports whether the IP has exhausted the shared email
// endpoint budget.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (bool, error) {
	return l.CheckIPRateLimitWithPurpose(ctx, ip, "email")
}

// CheckIPRateLimitWithPurpose reports whether the IP has exhausted the budget
// for a specific endpoint group.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count >= l.maxRequests, nil
}

// RecordIPRequest counts a request against the shared email endpoint budget.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip string) error {
	return l.RecordIPRequestWithPurpose(ctx, ip, "email")
}

// RecordIPRequestWithPurpose counts a request against a specific endpoint
// group. The window TTL is set when the counter is created and left alone on
// later increments, which is what makes the window fixed rather than sliding.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	return nil
}

// CheckEmailCooldown reports whether an email was sent to the address too
// recently.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	exists, err := l.client.Exists(ctx, emailCooldownKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return exists > 0, nil
}

// SetEmailCooldown starts the cooldown for an address.
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, emailCooldownKey(email), "1", l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
