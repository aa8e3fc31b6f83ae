package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrNoKey        = errors.New("no token verification key configured")
)

// ScopeList accepts both the space-delimited string form of a scope claim and
// the JSON array form.
type ScopeList []string

func (s *ScopeList) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = strings.Fields(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("scope claim: %w", err)
	}
	*s = list
	return nil
}

type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Claims is the subset of a Keycloak access token the services read.
type Claims struct {
	PreferredUsername string       `json:"preferred_username,omitempty"`
	Scope             ScopeList    `json:"scope,omitempty"`
	Scp               ScopeList    `json:"scp,omitempty"`
	RealmAccess       *RealmAccess `json:"realm_access,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks bearer token signatures and standard claims.
type Verifier struct {
	key     any
	methods []string
	issuer  string
}

// NewRSAVerifier verifies RS256 tokens against a PEM encoded public key.
func NewRSAVerifier(pemBytes []byte, issuer string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Verifier{key: key, methods: []string{"RS256"}, issuer: issuer}, nil
}

// NewHMACVerifier verifies HS256 tokens with a shared secret.
func NewHMACVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{key: secret, methods: []string{"HS256"}, issuer: issuer}
}

// NewVerifierFromConfig prefers the public key file and falls back to the
// shared secret.
func NewVerifierFromConfig(publicKeyFile, hmacSecret, issuer string) (*Verifier, error) {
	switch {
	case publicKeyFile != "":
		b, err := os.ReadFile(publicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		return NewRSAVerifier(b, issuer)
	case hmacSecret != "":
		return NewHMACVerifier([]byte(hmacSecret), issuer), nil
	default:
		return nil, ErrNoKey
	}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
