package router

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing token")

// Claims are the token claims issued by the account service
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenAuth verifies HS256 bearer tokens
type TokenAuth struct {
	secret     []byte
	issuer     string
	cookieName string
}

// NewTokenAuth creates a verifier. cookieName is the cookie checked when no
// Authorization header is present.
func NewTokenAuth(secret, issuer, cookieName string) *TokenAuth {
	if cookieName == "" {
		cookieName = "token"
	}
	return &TokenAuth{secret: []byte(secret), issuer: issuer, cookieName: cookieName}
}

// Verify returns the user id carried by a valid token
func (a *TokenAuth) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if claims.UserID == "" {
		return "", fmt.Errorf("invalid token: missing userId claim")
	}
	return claims.UserID, nil
}

// Issue signs a token for userID that expires after ttl
func (a *TokenAuth) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// tokenFrom looks in the Authorization header, then the auth cookie, then the
// token query parameter used by browser websocket clients
func (a *TokenAuth) tokenFrom(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", fmt.Errorf("malformed Authorization header")
		}
		return token, nil
	}

	if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
		return cookie, nil
	}

	if token := c.Query("token"); token != "" {
		return token, nil
	}

	return "", errMissingToken
}
