// Package authtest mints HS256 tokens shaped like Keycloak access tokens.
package authtest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Secret = "test-secret"

// Token signs a token for username carrying realmRoles. It panics on signing
// errors, which cannot happen with an HMAC key.
func Token(username string, realmRoles ...string) string {
	claims := jwt.MapClaims{
		"sub":                "sub-" + username,
		"preferred_username": username,
		"scope":              "openid profile",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	if realmRoles != nil {
		claims["realm_access"] = map[string]any{"roles": realmRoles}
	}
	return Sign(claims)
}

func Sign(claims jwt.MapClaims) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(Secret))
	if err != nil {
		panic(err)
	}
	return s
}
