package password

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fastArgonConfig is the cheapest configuration validateConfig accepts.
func fastArgonConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newFastArgon(t *testing.T, maxBytes int) *Argon2 {
	t.Helper()
	cfg := fastArgonConfig()
	cfg.MaxPasswordBytes = maxBytes
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func TestDefaultConfigIsAcceptedAndEncoded(t *testing.T) {
	cfg := DefaultConfig()
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("DefaultConfig must validate: %v", err)
	}
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2(DefaultConfig) failed: %v", err)
	}
	if h.config.MaxPasswordBytes != DefaultMaxPasswordBytes {
		t.Fatalf("expected max bytes %d, got %d", DefaultMaxPasswordBytes, h.config.MaxPasswordBytes)
	}

	hash, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	want := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$", cfg.Memory, cfg.Time, cfg.Parallelism)
	if !strings.HasPrefix(hash, want) {
		t.Fatalf("expected prefix %s, got %s", want, hash)
	}
	if ok, err := h.Verify("correct-password-123", hash); err != nil || !ok {
		t.Fatalf("expected match: ok=%v err=%v", ok, err)
	}
	if ok, err := h.Verify("correct-password-124", hash); err != nil || ok {
		t.Fatalf("expected mismatch without error: ok=%v err=%v", ok, err)
	}
}

func TestNewArgon2RejectsWeakParameters(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 4 * 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	}
	for name, weaken := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := fastArgonConfig()
			weaken(&cfg)
			if _, err := NewArgon2(cfg); err == nil {
				t.Fatal("expected weak parameters to be rejected")
			}
		})
	}
}

func TestArgon2LengthLimits(t *testing.T) {
	h := newFastArgon(t, 32)

	if _, err := h.Hash("short"); err == nil || errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected a minimum-length error, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 33)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong from Hash, got %v", err)
	}

	hash, err := h.Hash(strings.Repeat("b", 32))
	if err != nil {
		t.Fatalf("password at the limit must hash: %v", err)
	}
	if ok, err := h.Verify(strings.Repeat("b", 32), hash); err != nil || !ok {
		t.Fatalf("password at the limit must verify: ok=%v err=%v", ok, err)
	}
	// Login maps this error to invalid credentials without hashing.
	if _, err := h.Verify(strings.Repeat("b", 33), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong from Verify, got %v", err)
	}
}

func TestArgon2VerifyRejectsForeignHashes(t *testing.T) {
	h := newFastArgon(t, 0)
	hash, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(hash, "$v=19$", "$v=18$", 1),
		"argon2i":       strings.Replace(hash, "$argon2id$", "$argon2i$", 1),
		"bad params":    strings.Replace(hash, "$m=", "$x=", 1),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("correct-password-123", encoded); err == nil {
				t.Fatal("expected an error for a malformed hash")
			}
		})
	}
}

func TestArgon2NeedsUpgradeTracksParameters(t *testing.T) {
	weak := newFastArgon(t, 0)
	weakHash, err := weak.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strong, err := NewArgon2(DefaultConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	if up, err := strong.NeedsUpgrade(weakHash); err != nil || !up {
		t.Fatalf("weaker hash must need upgrade: up=%v err=%v", up, err)
	}
	if up, err := weak.NeedsUpgrade(weakHash); err != nil || up {
		t.Fatalf("same parameters must not need upgrade: up=%v err=%v", up, err)
	}
}

func TestAutoPropagatesLengthLimitPerScheme(t *testing.T) {
	cfg := fastArgonConfig()
	cfg.MaxPasswordBytes = 100
	auto, err := NewAuto(cfg, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAuto failed: %v", err)
	}

	argonHash, err := auto.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-password-123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	// 80 bytes is within the argon2 limit but past what bcrypt can represent.
	pw := strings.Repeat("p", 80)
	if _, err := auto.Verify(pw, argonHash); err != nil {
		t.Fatalf("argon2id branch must accept %d bytes: %v", len(pw), err)
	}
	if _, err := auto.Verify(pw, string(legacy)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("bcrypt branch must reject %d bytes, got %v", len(pw), err)
	}
	if _, err := auto.Verify(strings.Repeat("p", 101), argonHash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("argon2id branch must reject past its limit, got %v", err)
	}
}
