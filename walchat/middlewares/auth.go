package middlewares

import (
	"context"
	"net/http"
	"strings"

	"walchat/walchat/config"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// AddressKey carries the wallet address of the authenticated request.
const AddressKey contextKey = "address"

func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(auth, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			address, err := ParseAddress(parts[1], cfg.JWTSecret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), AddressKey, address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseAddress validates a token and extracts its address claim. Shared with
// the websocket route, which authenticates from the first frame instead of a
// header.
func ParseAddress(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	address, ok := claims["address"].(string)
	if !ok || address == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return address, nil
}
