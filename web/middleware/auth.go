package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const payerIDKey = "payerID"

var errNoToken = errors.New("authorization header is missing")

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) parse(header string) (jwt.MapClaims, error) {
	if header == "" {
		return nil, errNoToken
	}
	if len(a.secret) == 0 {
		return nil, errors.New("no signing secret configured")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": msg})
}

// OptionalAuth attaches the payer id from a bearer token when one is sent.
// Anonymous requests pass through; a bad token does not.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c.GetHeader("Authorization"))
		if errors.Is(err, errNoToken) {
			c.Next()
			return
		}
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}

		if _, ok := claims["sub"]; ok {
			id, ok := subjectID(claims["sub"])
			if !ok {
				unauthorized(c, "Invalid token subject")
				return
			}
			c.Set(payerIDKey, id)
		}
		c.Next()
	}
}

// subjectID reads a positive integer payer id from the sub claim, sent
// either as a JSON number or as a decimal string.
func subjectID(v interface{}) (uint, bool) {
	switch sub := v.(type) {
	case float64:
		// JWT numeric values are float64; above 2^53 they are no longer exact.
		if sub < 1 || sub > 1<<53 || sub != math.Trunc(sub) {
			return 0, false
		}
		return uint(sub), true
	case string:
		n, err := strconv.ParseUint(sub, 10, strconv.IntSize)
		if err != nil || n == 0 {
			return 0, false
		}
		return uint(n), true
	}
	return 0, false
}

func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}
		if admin, _ := claims["admin"].(bool); !admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Admin access required"})
			return
		}
		c.Next()
	}
}

// PayerID returns the id set by OptionalAuth, or nil for anonymous callers.
func PayerID(c *gin.Context) *uint {
	v, ok := c.Get(payerIDKey)
	if !ok {
		return nil
	}
	id := v.(uint)
	return &id
}
