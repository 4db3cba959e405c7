package utils

import (
	"errors"
	"fmt"
	"time"

	"b2b-storefront/auth"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSubject = errors.New("token has no subject")

// ParseToken validates an HS256 token and returns the actor it names. The
// subject comes from "sub", falling back to "user_id"; a missing role means
// customer.
func ParseToken(secret, tokenString string) (auth.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return auth.Actor{}, err
	}
	if !token.Valid {
		return auth.Actor{}, jwt.ErrTokenSignatureInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Actor{}, jwt.ErrTokenInvalidClaims
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		switch v := claims["user_id"].(type) {
		case string:
			id = v
		case float64:
			id = fmt.Sprintf("%.0f", v)
		}
	}
	if id == "" {
		return auth.Actor{}, ErrMissingSubject
	}

	role := auth.RoleCustomer
	if r, _ := claims["role"].(string); r == string(auth.RoleAdmin) {
		role = auth.RoleAdmin
	}
	return auth.Actor{ID: id, Role: role}, nil
}

// IssueToken signs a token for actor valid for ttl.
func IssueToken(secret string, actor auth.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  actor.ID,
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
