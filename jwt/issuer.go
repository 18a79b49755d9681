package jwt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	minSecretBytes = 32
	maxLeeway      = 2 * time.Minute
)

// Token kinds carried in the typ claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	// ErrExpired is returned when a token is well-formed and correctly signed
	// but past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for every other verification failure: bad
	// signature, wrong secret, wrong algorithm, malformed input, wrong token
	// kind, issuer or audience mismatch.
	ErrInvalid = errors.New("token invalid")
)

// Config defines issuer secrets, lifetimes and the fixed service identity.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration

	// Now overrides the clock used for issuance and verification. Nil means time.Now.
	Now func() time.Time
}

// Claims is the identity payload shared by access and refresh tokens.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Kind      string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Identity is the caller-supplied part of a token. Timestamps, jti, issuer
// and audience are always filled by the [Issuer].
type Identity struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// Issuer mints and verifies HS256 access and refresh tokens with two
// independent secrets.
//
// Issuer is safe for concurrent use.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer validates cfg and returns an [Issuer].
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be >= access TTL")
	}
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretBytes)
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretBytes)
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	cfg.AccessSecret = append([]byte(nil), cfg.AccessSecret...)
	cfg.RefreshSecret = append([]byte(nil), cfg.RefreshSecret...)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Issuer{config: cfg, now: now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

// IssueAccess signs an access token for id with the access secret. The
// returned time is the token's expiry.
//
//	Performance: one HMAC-SHA256, no I/O.
func (i *Issuer) IssueAccess(id Identity) (string, time.Time, error) {
	return i.issue(id, KindAccess, i.config.AccessSecret, i.config.AccessTTL)
}

// IssueRefresh signs a refresh token for id with the refresh secret.
func (i *Issuer) IssueRefresh(id Identity) (string, time.Time, error) {
	return i.issue(id, KindRefresh, i.config.RefreshSecret, i.config.RefreshTTL)
}

func (i *Issuer) issue(id Identity, kind string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return "", time.Time{}, errors.New("token subject required")
	}

	now := i.now()
	exp := now.Add(ttl)

	claims := Claims{
		Email:     id.Email,
		Role:      id.Role,
		SessionID: id.SessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	// NumericDate truncates to seconds; report what the token actually carries.
	return signed, claims.ExpiresAt.Time, nil
}

// VerifyAccess checks signature, expiry, issuer, audience and kind of an
// access token.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return i.verify(token, KindAccess, i.config.AccessSecret)
}

// VerifyRefresh checks signature, expiry, issuer, audience and kind of a
// refresh token.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verify(token, KindRefresh, i.config.RefreshSecret)
}

func (i *Issuer) verify(tokenStr, kind string, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		// An expired token signed with the wrong key is still invalid; the
		// parser only reports expiry after the signature checked out.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrExpired
		}
		return nil, errors.Join(ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

// Hash returns the lowercase hex SHA-256 of a raw token. It is the only form
// in which tokens are persisted, cached or logged.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
