package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"service-marketplace-server/config"
	"service-marketplace-server/types"
)

var ErrInvalidToken = errors.New("invalid token claims")

func jwtConfig() (config.JWTConfig, error) {
	if config.AppConfig == nil || config.AppConfig.JWT.Secret == "" {
		return config.JWTConfig{}, errors.New("jwt secret is not configured")
	}
	return config.AppConfig.JWT, nil
}

// GenerateToken issues an access token for an account and its role
func GenerateToken(userID uint, role string) (string, error) {
	cfg, err := jwtConfig()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := &types.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpiryHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// VerifyToken verifies a JWT token and returns the claims
func VerifyToken(tokenString string) (*types.Claims, error) {
	cfg, err := jwtConfig()
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &types.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*types.Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidatePhoneNumber accepts an optional leading + followed by 7 to 15
// digits. Spaces and dashes are ignored.
func ValidatePhoneNumber(phoneNumber string) bool {
	digits := strings.TrimPrefix(NormalizePhoneNumber(phoneNumber), "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhoneNumber strips spaces and dashes.
func NormalizePhoneNumber(phoneNumber string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phoneNumber))
}
