package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// WorkerID identifies the delivery worker; it is also mirrored into sub.
type Claims struct {
	jwt.RegisteredClaims

	WorkerID  int64     `json:"worker_id"`
	TokenType TokenType `json:"token_type"`
}
