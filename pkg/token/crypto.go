package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Token derivation parameters. Tokens are verified on every request, so the
// iteration count is kept moderate; the 128-character random token itself
// carries far more entropy than a human passphrase.
const (
	// TokenLength is the number of characters in a generated plaintext token.
	TokenLength = 128

	// TokenIterations is the PBKDF2 iteration count for token hashes.
	TokenIterations = 10000

	// TokenSaltBytes is the random salt length for token hashes.
	TokenSaltBytes = 16

	// TokenHashBytes is the derived key length for token hashes.
	TokenHashBytes = 32
)

// Passphrase derivation parameters, aligned with current OWASP guidance for
// PBKDF2-SHA256. The passphrase gate is hit only by the admin tooling.
const (
	// PassphraseIterations is the PBKDF2 iteration count for the management passphrase.
	PassphraseIterations = 310000

	// PassphraseSaltBytes is the random salt length for the management passphrase.
	PassphraseSaltBytes = 32

	// PassphraseHashBytes is the derived key length for the management passphrase.
	PassphraseHashBytes = 32

	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 8
)

// tokenCharset holds the 64 characters tokens are drawn from. Its size being
// a power of two keeps the random selection uniform.
const tokenCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// GenerateToken returns a new random plaintext token of TokenLength
// characters drawn from [A-Za-z0-9-_] using a CSPRNG.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenCharset[int(b)&(len(tokenCharset)-1)]
	}
	return string(buf), nil
}

// HashToken derives the storable hash for a plaintext token with a fresh
// random salt. Both return values are base64-encoded.
func HashToken(plaintext string) (hash, salt string, err error) {
	rawSalt := make([]byte, TokenSaltBytes)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(plaintext), rawSalt, TokenIterations, TokenHashBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// MatchToken re-derives the hash of plaintext with the stored salt and
// compares it against the stored hash in constant time. The comparison
// operates on fixed-length derived keys, so no length information about the
// presented token leaks through timing.
func MatchToken(plaintext, hash, salt string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	derived := pbkdf2.Key([]byte(plaintext), rawSalt, TokenIterations, TokenHashBytes, sha256.New)
	return subtle.ConstantTimeCompare(derived, rawHash) == 1
}

// HashPassphrase derives the storable hash for a management passphrase with
// a fresh random salt. Both return values are base64-encoded.
func HashPassphrase(passphrase string) (hash, salt string, err error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return "", "", err
	}
	rawSalt := make([]byte, PassphraseSaltBytes)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), rawSalt, PassphraseIterations, PassphraseHashBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// MatchPassphrase re-derives the passphrase hash with the stored salt and
// compares it in constant time.
func MatchPassphrase(passphrase, hash, salt string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	derived := pbkdf2.Key([]byte(passphrase), rawSalt, PassphraseIterations, PassphraseHashBytes, sha256.New)
	return subtle.ConstantTimeCompare(derived, rawHash) == 1
}

// ValidatePassphrase checks if a passphrase meets the minimum requirements.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return ErrPassphraseTooShort
	}
	return nil
}
