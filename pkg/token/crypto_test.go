package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if len(tok) != TokenLength {
		t.Errorf("token length = %d, expected %d", len(tok), TokenLength)
	}

	for i, c := range tok {
		if !strings.ContainsRune(tokenCharset, c) {
			t.Errorf("character %q at position %d outside allowed charset", c, i)
		}
	}

	other, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if tok == other {
		t.Error("two generated tokens are identical")
	}
}

func TestHashTokenRoundtrip(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	hash, salt, err := HashToken(tok)
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}

	rawHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		t.Fatalf("hash is not valid base64: %v", err)
	}
	if len(rawHash) != TokenHashBytes {
		t.Errorf("hash length = %d bytes, expected %d", len(rawHash), TokenHashBytes)
	}

	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		t.Fatalf("salt is not valid base64: %v", err)
	}
	if len(rawSalt) != TokenSaltBytes {
		t.Errorf("salt length = %d bytes, expected %d", len(rawSalt), TokenSaltBytes)
	}

	if !MatchToken(tok, hash, salt) {
		t.Error("MatchToken rejected the original token")
	}
	if MatchToken(tok+"x", hash, salt) {
		t.Error("MatchToken accepted a modified token")
	}
	if MatchToken("", hash, salt) {
		t.Error("MatchToken accepted an empty token")
	}
	if MatchToken(tok, hash, "not base64!") {
		t.Error("MatchToken accepted a corrupt salt")
	}
}

func TestHashTokenSaltsDiffer(t *testing.T) {
	hash1, salt1, err := HashToken("same-token")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	hash2, salt2, err := HashToken("same-token")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}

	if salt1 == salt2 {
		t.Error("two hashes of the same token reused a salt")
	}
	if hash1 == hash2 {
		t.Error("two hashes of the same token are identical despite fresh salts")
	}
}

func TestHashPassphrase(t *testing.T) {
	t.Run("RejectsShortPassphrase", func(t *testing.T) {
		_, _, err := HashPassphrase("short")
		if !errors.Is(err, ErrPassphraseTooShort) {
			t.Errorf("expected ErrPassphraseTooShort, got %v", err)
		}
	})

	t.Run("Roundtrip", func(t *testing.T) {
		hash, salt, err := HashPassphrase("correct horse battery staple")
		if err != nil {
			t.Fatalf("HashPassphrase: %v", err)
		}

		rawSalt, err := base64.StdEncoding.DecodeString(salt)
		if err != nil {
			t.Fatalf("salt is not valid base64: %v", err)
		}
		if len(rawSalt) != PassphraseSaltBytes {
			t.Errorf("salt length = %d bytes, expected %d", len(rawSalt), PassphraseSaltBytes)
		}

		if !MatchPassphrase("correct horse battery staple", hash, salt) {
			t.Error("MatchPassphrase rejected the original passphrase")
		}
		if MatchPassphrase("wrong horse", hash, salt) {
			t.Error("MatchPassphrase accepted a wrong passphrase")
		}
	})
}
