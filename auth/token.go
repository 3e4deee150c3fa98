package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AndyMelnik/sensoriqua/apperr"
)

// minStrictSecretLen is the minimum signing secret length for strict mode.
// Shorter secrets are treated as absent and a per-process random secret is
// generated instead, which keeps sessions working in development but makes
// them non-portable across restarts.
const minStrictSecretLen = 32

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 24 * time.Hour

// Claims is the payload carried by a session token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens.
type Codec struct {
	secret []byte
	strict bool
	now    func() time.Time
}

// NewCodec builds a token codec from the configured signing secret. A secret
// of at least minStrictSecretLen characters enables strict mode; anything
// shorter falls back to a random per-process secret.
func NewCodec(secret string) *Codec {
	c := &Codec{now: time.Now}
	if len(secret) >= minStrictSecretLen {
		c.secret = []byte(secret)
		c.strict = true
		return c
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("auth: cannot read random secret: " + err.Error())
	}
	c.secret = []byte(hex.EncodeToString(buf))
	return c
}

// Strict reports whether the codec runs with an operator-provided secret.
func (c *Codec) Strict() bool { return c.strict }

// Issue creates a signed session token for a tenant session.
func (c *Codec) Issue(userID, email, role string) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamQueryFailed, "token signing failed", err)
	}
	return signed, nil
}

// Verify parses a session token and returns its claims. Expired, malformed
// and wrongly-signed tokens all come back as Unauthenticated.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Newf(apperr.Unauthenticated, "unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid or expired session token", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "invalid or expired session token")
	}
	return claims, nil
}
