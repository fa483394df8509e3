package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

func verify(tokenString string) bool {
	token, err := jwt.ParseWithClaims(tokenString, nil, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})

	return err == nil && token.Valid
}
