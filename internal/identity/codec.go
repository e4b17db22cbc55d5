package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the browser cookie carrying the signed identity record
const CookieName = "tripmate_identity"

// TTL is how long a browser keeps the identity cookie
const TTL = 365 * 24 * time.Hour

// ErrInvalid is returned when a token cannot be parsed or verified
var ErrInvalid = errors.New("invalid identity token")

// Claims represents the identity record as JWT claims
type Claims struct {
	Name     string   `json:"name"`
	GroupIDs []string `json:"groupIds"`
	jwt.RegisteredClaims
}

// Codec signs and verifies identity tokens
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a codec using secret as the HMAC key
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Encode signs the identity record
func (c *Codec) Encode(id Identity) (string, error) {
	now := c.now()
	claims := &Claims{
		Name:     id.Name,
		GroupIDs: id.GroupIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies a token and returns the identity it carries
func (c *Codec) Decode(tokenString string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalid
	}

	return Identity{Name: claims.Name, GroupIDs: claims.GroupIDs}, nil
}
