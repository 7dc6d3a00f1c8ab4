package token

import (
	"strings"
	"time"
)

// AuthToken is a persisted bearer token record. The plaintext token is never
// stored; only the PBKDF2-SHA256 hash and the per-token salt are kept.
type AuthToken struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Username string `gorm:"size:255;not null;index" json:"username"`

	// Hash is the base64-encoded PBKDF2-SHA256 digest of the plaintext token.
	Hash string `gorm:"size:64;not null" json:"-"`

	// Salt is the base64-encoded random salt used to derive Hash.
	Salt string `gorm:"size:64;not null" json:"-"`

	// AllowedScopes is a comma-separated list of endpoint patterns. Supported
	// forms: "*", "prefix*", "namespace/*" and exact "namespace/endpoint".
	AllowedScopes string `gorm:"size:2048" json:"allowed_scopes"`

	// AllowedEnvironments is a comma-separated list of environment patterns
	// using the same grammar as AllowedScopes.
	AllowedEnvironments string `gorm:"size:2048" json:"allowed_environments"`

	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TableName specifies the database table name.
func (AuthToken) TableName() string {
	return "tokens"
}

// ActiveAt reports whether the token is usable at the given instant:
// not revoked and not past its expiry.
func (t *AuthToken) ActiveAt(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Active reports whether the token is usable right now.
func (t *AuthToken) Active() bool {
	return t.ActiveAt(time.Now())
}

// Scopes returns the parsed scope pattern list.
func (t *AuthToken) Scopes() []string {
	return splitCSV(t.AllowedScopes)
}

// Environments returns the parsed environment pattern list.
func (t *AuthToken) Environments() []string {
	return splitCSV(t.AllowedEnvironments)
}

// SetScopes replaces the scope pattern list.
func (t *AuthToken) SetScopes(scopes []string) {
	t.AllowedScopes = joinCSV(scopes)
}

// SetEnvironments replaces the environment pattern list.
func (t *AuthToken) SetEnvironments(envs []string) {
	t.AllowedEnvironments = joinCSV(envs)
}

// AllowsScope reports whether any scope pattern matches the endpoint path.
func (t *AuthToken) AllowsScope(endpoint string) bool {
	return MatchAny(t.Scopes(), endpoint)
}

// AllowsEnvironment reports whether any environment pattern matches env.
func (t *AuthToken) AllowsEnvironment(env string) bool {
	return MatchAny(t.Environments(), env)
}

// ManagementRecord is the single-row table guarding administrative access.
// The passphrase hash uses a much higher PBKDF2 iteration count than tokens
// because it is verified rarely and must resist offline attack.
type ManagementRecord struct {
	ID             uint       `gorm:"primaryKey" json:"-"`
	PassphraseHash string     `gorm:"size:64;not null" json:"-"`
	Salt           string     `gorm:"size:64;not null" json:"-"`
	FailedAttempts int        `json:"failed_attempts"`
	LastFailedAt   *time.Time `json:"last_failed_at,omitempty"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the database table name.
func (ManagementRecord) TableName() string {
	return "management"
}

// LockedAt reports whether the record is locked out at the given instant.
func (m *ManagementRecord) LockedAt(now time.Time) bool {
	return m.LockedUntil != nil && now.Before(*m.LockedUntil)
}

// AllModels returns all models for GORM AutoMigrate.
func AllModels() []any {
	return []any{
		&AuthToken{},
		&ManagementRecord{},
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(items []string) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return strings.Join(out, ",")
}
