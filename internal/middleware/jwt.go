package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strconv"  // subject parsing
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the caller back with UserID and Roles.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Only HMAC-signed tokens are accepted; exp is enforced by the parser.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := subject(claims["sub"])
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			roles := roleClaims(claims)

			c.Set(ctxUserID, uid)
			c.Set(ctxRoles, roles)
			if len(roles) > 0 {
				c.Set(ctxRole, roles[0])
			}
			return next(c)
		}
	}
}

// subject accepts both the string form and the numeric form older tokens
// were issued with.
func subject(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n != 0
	case float64:
		if t <= 0 {
			return 0, false
		}
		return uint64(t), true
	}
	return 0, false
}

// roleClaims merges the "roles" array and the single "role" claim,
// upper-cased and without duplicates.
func roleClaims(claims jwt.MapClaims) []string {
	var out []string
	seen := map[string]bool{}
	add := func(v interface{}) {
		s, ok := v.(string)
		s = strings.ToUpper(strings.TrimSpace(s))
		if !ok || s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	if arr, ok := claims["roles"].([]interface{}); ok {
		for _, r := range arr {
			add(r)
		}
	}
	add(claims["role"])
	return out
}
