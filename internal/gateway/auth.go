package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const TokenIssuer = "foxbit-gateway"

// IssueToken signs an HS256 token for subject, valid for ttl.
func IssueToken(sharedKey, subject string, ttl time.Duration) (string, error) {
	if sharedKey == "" {
		return "", errors.New("shared key is empty")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Issuer:    TokenIssuer,
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(sharedKey))
}

func (s *Server) parseToken(raw string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.sharedKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || !claims.VerifyIssuer(TokenIssuer, true) {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "missing bearer token",
			})
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": err.Error(),
			})
		}
		c.Set(ctxSubject, claims.Subject)
		return next(c)
	}
}
