package handlers

import (
	"github.com/golang-jwt/jwt/v4"
)

func keyFunc(*jwt.Token) (interface{}, error) {
	return []byte("secret"), nil
}

func userFromToken(tokenString string) bool {
	token, err := jwt.Parse(tokenString, keyFunc) // want "parse bearer tokens with auth.Verifier instead of jwt.Parse"
	if err != nil {
		return false
	}

	parser := &jwt.Parser{}
	_, _, _ = parser.ParseUnverified(tokenString, nil) // want "parse bearer tokens with auth.Verifier instead of jwt.ParseUnverified"

	_ = jwt.NewWithClaims(nil)

	return token.Valid
}
