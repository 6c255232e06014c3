package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the symmetric algorithm used for every token.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

const minSecretLength = 32

var (
	// ErrExpired is returned when the current time is at or past expires_at.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for any structural or signature failure.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongKind is returned when the decoded kind differs from the expected one.
	ErrWrongKind = errors.New("token kind mismatch")
)

// Config holds process-wide signing configuration.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	Issuer        string
	Audience      string
	// Leeway tolerates clock skew on iat and nbf. It never extends exp.
	Leeway time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Codec encodes and decodes claim sets. It is safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	var method jwt.SigningMethod
	switch SigningMethod(strings.ToLower(string(cfg.SigningMethod))) {
	case MethodHS256, "":
		method = jwt.SigningMethodHS256
	case MethodHS384:
		method = jwt.SigningMethodHS384
	case MethodHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Codec{
		config: cfg,
		method: method,
		parser: jwt.NewParser(options...),
	}, nil
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time {
	return c.config.Now()
}

// NewClaims builds a claim set of the given kind for userID, valid for ttl
// from now. Refresh and email-verification kinds receive a fresh token id.
// Times are truncated to whole seconds so that a decoded claim set compares
// equal to the one that was encoded.
func (c *Codec) NewClaims(kind Kind, userID string, ttl time.Duration) Claims {
	now := c.config.Now().Truncate(time.Second)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	if kind.RequiresTokenID() {
		claims.ID = NewTokenID()
	}
	return claims
}

// Encode signs claims and returns the compact token string.
//
// Encode panics when claims of a kind that requires a token id have none.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.Kind.Valid() {
		return "", fmt.Errorf("unknown token kind %q", claims.Kind)
	}
	if claims.Subject == "" {
		return "", errors.New("claims subject is required")
	}
	if claims.ExpiresAt == nil {
		return "", errors.New("claims expiry is required")
	}
	mustHaveTokenID(&claims)

	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.config.Secret)
}

// Decode verifies tokenStr and returns its claims when they are of the
// expected kind.
//
// Errors are [ErrExpired], [ErrMalformed] or [ErrWrongKind]. A token whose
// signature fails is always [ErrMalformed], even if its expiry has passed.
// A token is expired from the instant now reaches exp, whatever the leeway.
func (c *Codec) Decode(tokenStr string, expected Kind) (*Claims, error) {
	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}
	// Leeway only absorbs clock skew on iat and nbf; expiry is exact.
	if !c.config.Now().Before(claims.ExpiresAtTime()) {
		return nil, ErrExpired
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if claims.Kind != expected {
		return nil, ErrWrongKind
	}
	mustHaveTokenID(claims)

	return claims, nil
}

func mustHaveTokenID(claims *Claims) {
	if claims.Kind.RequiresTokenID() && claims.ID == "" {
		panic(fmt.Sprintf("jwt: %s claims without token id", claims.Kind))
	}
}
