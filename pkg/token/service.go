package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/portway-io/portway/internal/logger"
)

// Info is the result of a successful verification: everything a request
// pipeline needs to authorise the call, and nothing secret.
type Info struct {
	ID           string
	Username     string
	Scopes       []string
	Environments []string
	ExpiresAt    *time.Time
}

// AllowsScope reports whether any scope pattern matches the endpoint path.
func (i *Info) AllowsScope(endpoint string) bool {
	return MatchAny(i.Scopes, endpoint)
}

// AllowsEnvironment reports whether any environment pattern matches env.
func (i *Info) AllowsEnvironment(env string) bool {
	return MatchAny(i.Environments, env)
}

// Service implements token issuance and verification on top of the store.
// All mutating operations flush the verification cache before returning, so
// a revocation observed by the caller is observed by every verifier.
type Service struct {
	store *Store
	cache *verifyCache

	// mu serialises management passphrase verification so the lockout
	// counters have a single writer.
	mu sync.Mutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewService creates a token service backed by the given store.
func NewService(store *Store) *Service {
	return &Service{
		store: store,
		cache: newVerifyCache(verifyCacheTTL),
		now:   time.Now,
	}
}

// Issue generates a fresh plaintext token for username, persists its hash
// and returns the plaintext together with the stored record. The plaintext
// is not recoverable afterwards. A zero ttl means the token never expires.
func (s *Service) Issue(ctx context.Context, username string, scopes, envs []string, ttl time.Duration) (string, *AuthToken, error) {
	if username == "" {
		return "", nil, fmt.Errorf("username is required")
	}

	plaintext, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}
	hash, salt, err := HashToken(plaintext)
	if err != nil {
		return "", nil, err
	}

	rec := &AuthToken{
		Username:  username,
		Hash:      hash,
		Salt:      salt,
		CreatedAt: s.now().UTC(),
	}
	rec.SetScopes(scopes)
	rec.SetEnvironments(envs)
	if ttl > 0 {
		expires := rec.CreatedAt.Add(ttl)
		rec.ExpiresAt = &expires
	}

	if _, err := s.store.CreateToken(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("failed to persist token: %w", err)
	}
	s.cache.flush()

	logger.InfoCtx(ctx, "token issued",
		"token_id", rec.ID,
		"username", username,
		"scopes", rec.AllowedScopes,
		"environments", rec.AllowedEnvironments)

	return plaintext, rec, nil
}

// Verify checks a presented plaintext token against every active record,
// re-deriving the hash with each record's salt and comparing in constant
// time. Returns ErrInvalidToken when nothing matches; storage failures
// surface as errors rather than silent denials.
func (s *Service) Verify(ctx context.Context, plaintext string) (*Info, error) {
	if plaintext == "" {
		return nil, ErrInvalidToken
	}

	now := s.now()
	if info, ok := s.cache.get(plaintext, now); ok {
		return &info, nil
	}

	active, err := s.store.ListActiveTokens(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load active tokens: %w", err)
	}

	for _, rec := range active {
		if !MatchToken(plaintext, rec.Hash, rec.Salt) {
			continue
		}
		info := Info{
			ID:           rec.ID,
			Username:     rec.Username,
			Scopes:       rec.Scopes(),
			Environments: rec.Environments(),
			ExpiresAt:    rec.ExpiresAt,
		}
		s.cache.put(plaintext, info, now)
		return &info, nil
	}

	return nil, ErrInvalidToken
}

// Revoke marks a token record as revoked. Verification denies it immediately.
func (s *Service) Revoke(ctx context.Context, id string) error {
	err := s.store.UpdateToken(ctx, id, map[string]any{"revoked_at": s.now().UTC()})
	if err != nil {
		return err
	}
	s.cache.flush()

	logger.InfoCtx(ctx, "token revoked", "token_id", id)
	return nil
}

// Rotate revokes the identified token and issues a replacement for the same
// username with the same scopes, environments and expiry. Returns the new
// plaintext and record.
func (s *Service) Rotate(ctx context.Context, id string) (string, *AuthToken, error) {
	old, err := s.store.GetToken(ctx, id)
	if err != nil {
		return "", nil, err
	}

	plaintext, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}
	hash, salt, err := HashToken(plaintext)
	if err != nil {
		return "", nil, err
	}

	fresh := &AuthToken{
		Username:            old.Username,
		Hash:                hash,
		Salt:                salt,
		AllowedScopes:       old.AllowedScopes,
		AllowedEnvironments: old.AllowedEnvironments,
		CreatedAt:           s.now().UTC(),
		ExpiresAt:           old.ExpiresAt,
	}

	if _, err := s.store.ReplaceToken(ctx, id, fresh, s.now().UTC()); err != nil {
		return "", nil, fmt.Errorf("failed to rotate token: %w", err)
	}
	s.cache.flush()

	logger.InfoCtx(ctx, "token rotated",
		"token_id", id,
		"new_token_id", fresh.ID,
		"username", old.Username)

	return plaintext, fresh, nil
}

// UpdateScopes replaces the scope pattern list of a token.
func (s *Service) UpdateScopes(ctx context.Context, id string, scopes []string) error {
	err := s.store.UpdateToken(ctx, id, map[string]any{"allowed_scopes": joinCSV(scopes)})
	if err != nil {
		return err
	}
	s.cache.flush()
	return nil
}

// UpdateEnvironments replaces the environment pattern list of a token.
func (s *Service) UpdateEnvironments(ctx context.Context, id string, envs []string) error {
	err := s.store.UpdateToken(ctx, id, map[string]any{"allowed_environments": joinCSV(envs)})
	if err != nil {
		return err
	}
	s.cache.flush()
	return nil
}

// UpdateExpiry replaces the expiry of a token. A nil expiry makes the token
// permanent until revoked.
func (s *Service) UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	var value any
	if expiresAt != nil {
		utc := expiresAt.UTC()
		value = utc
	}
	err := s.store.UpdateToken(ctx, id, map[string]any{"expires_at": value})
	if err != nil {
		return err
	}
	s.cache.flush()
	return nil
}

// Healthcheck verifies the backing store is reachable.
func (s *Service) Healthcheck(ctx context.Context) error {
	return s.store.Healthcheck(ctx)
}

// Get retrieves a single token record by ID.
func (s *Service) Get(ctx context.Context, id string) (*AuthToken, error) {
	return s.store.GetToken(ctx, id)
}

// List retrieves all token records, oldest first.
func (s *Service) List(ctx context.Context) ([]*AuthToken, error) {
	return s.store.ListTokens(ctx)
}
