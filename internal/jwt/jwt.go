// Package jwt issues and verifies the staff tokens guarding /admin.
package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret         = errors.New("token secret is not configured")
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
	ErrInvalidTTL       = errors.New("invalid token TTL")
)

var tokenSignatureAlg = gojwt.SigningMethodHS256

const issuer = "table-call"

// AdminClaim grants dashboard access. An empty Locations list means every
// location.
type AdminClaim struct {
	Locations []int `json:"locations,omitempty"`
	gojwt.RegisteredClaims
}

// Allows reports whether the claim covers location.
func (c *AdminClaim) Allows(location int) bool {
	return len(c.Locations) == 0 || slices.Contains(c.Locations, location)
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs an admin token for subject limited to locations.
func (s *Signer) Issue(subject string, locations []int) (string, error) {
	id, err := tokenID()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	claims := AdminClaim{
		Locations: locations,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return s.generate(claims)
}

// Verify parses tokenString and checks signature, issuer and expiry.
func (s *Signer) Verify(tokenString string) (*AdminClaim, error) {
	return decodeJWT(s, tokenString, &AdminClaim{})
}

// Generic JWT token generation function
func (s *Signer) generate(claims gojwt.Claims) (string, error) {
	token := gojwt.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString(s.secret)
}

func decodeJWT[T gojwt.Claims](s *Signer, tokenString string, claimsType T) (T, error) {
	var zero T

	parsedToken, err := gojwt.ParseWithClaims(tokenString, claimsType, func(token *gojwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		gojwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}),
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)

	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNonValidToken, err)
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}

func tokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
