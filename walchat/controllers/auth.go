package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"walchat/walchat/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingAddress = errors.New("missing wallet address")

// AuthController turns a wallet address into a bearer token. The address is
// an opaque identity token: nothing about it is verified here, it only gates
// which session store a request reaches.
type AuthController struct {
	cfg config.Config
}

func NewAuthController(cfg config.Config) *AuthController {
	return &AuthController{cfg: cfg}
}

func (c *AuthController) Connect(_ context.Context, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrMissingAddress
	}
	claims := jwt.MapClaims{
		"address": address,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.cfg.JWTSecret))
}
