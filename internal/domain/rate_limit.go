package domain

import "time"

// RateLimitRule is a fixed-window limit applied to one scope.
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeUser = "user"
	RateLimitScopeSend = "send"
)

// Key builds the counter key for subject under this rule.
func (r RateLimitRule) Key(subject string) string {
	return "ratelimit:" + r.Scope + ":" + subject
}

func (r RateLimitRule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}
