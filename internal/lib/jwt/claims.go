// Package jwt проверяет сессионные токены провайдера аутентификации
// и выпускает токены того же формата для локальной разработки и тестов.
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims данные сессии: sub: идентификатор пользователя у провайдера.
type SessionClaims struct {
	Email                string `json:"email,omitempty"`
	jwt.RegisteredClaims        // Стандартные claims (sub, exp, iat, iss)
}
