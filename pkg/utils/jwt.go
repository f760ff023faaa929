package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrologix/agrologix-backend/internal/models"
)

const tokenTTL = 7 * 24 * time.Hour

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID   string
	UserType models.UserType
}

func GenerateToken(user *models.User, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	claims := jwt.MapClaims{
		"id":       user.ID,
		"email":    user.Email,
		"userType": string(user.UserType),
		"exp":      time.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
}

// ParseIdentity validates tokenString and extracts the bearer's id and role.
func ParseIdentity(tokenString, secret string) (Identity, error) {
	token, err := ValidateToken(tokenString, secret)
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}
	id, _ := claims["id"].(string)
	userType, _ := claims["userType"].(string)
	if id == "" || !models.UserType(userType).Valid() {
		return Identity{}, fmt.Errorf("token carries no usable identity")
	}
	return Identity{UserID: id, UserType: models.UserType(userType)}, nil
}
