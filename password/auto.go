package password

import (
	"errors"
	"strings"
)

// ErrUnknownScheme is returned for hashes that are neither Argon2id nor bcrypt.
var ErrUnknownScheme = errors.New("unknown password hash scheme")

// Auto hashes with Argon2id and verifies either Argon2id or bcrypt, picked
// by the hash prefix.
type Auto struct {
	argon  *Argon2
	bcrypt *Bcrypt
}

// NewAuto builds an [Auto] hasher from Argon2 parameters and a bcrypt cost.
func NewAuto(cfg Config, bcryptCost int) (*Auto, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	b, err := NewBcrypt(bcryptCost)
	if err != nil {
		return nil, err
	}
	return &Auto{argon: a, bcrypt: b}, nil
}

func (h *Auto) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

func (h *Auto) Verify(password string, encodedHash string) (bool, error) {
	switch scheme(encodedHash) {
	case "argon2id":
		return h.argon.Verify(password, encodedHash)
	case "bcrypt":
		return h.bcrypt.Verify(password, encodedHash)
	default:
		return false, ErrUnknownScheme
	}
}

// NeedsUpgrade is true for every bcrypt hash and for Argon2id hashes with
// weaker parameters.
func (h *Auto) NeedsUpgrade(encodedHash string) (bool, error) {
	switch scheme(encodedHash) {
	case "argon2id":
		return h.argon.NeedsUpgrade(encodedHash)
	case "bcrypt":
		return true, nil
	default:
		return false, ErrUnknownScheme
	}
}

func scheme(encodedHash string) string {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return "argon2id"
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return "bcrypt"
	default:
		return ""
	}
}
