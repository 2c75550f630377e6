package types

import "github.com/golang-jwt/jwt/v5"

// Claims carries the acting account and its role.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
