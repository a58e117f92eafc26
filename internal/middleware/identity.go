package middleware

// identity.go holds the context keys JWTAuth fills in and the accessors
// handlers and other middleware use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id" // uint64
	ctxRole   = "role"    // string, first role
	ctxRoles  = "roles"   // []string
)

// UserID returns the authenticated user's id.  It reports false when the
// request is anonymous.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get(ctxUserID).(type) {
	case uint64:
		return v, v != 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}

// Roles returns the authenticated user's roles, or nil.
func Roles(c echo.Context) []string {
	if rs, ok := c.Get(ctxRoles).([]string); ok {
		return rs
	}
	if r, ok := c.Get(ctxRole).(string); ok && r != "" {
		return []string{r}
	}
	return nil
}

// subjectKey identifies the caller for rate limiting.
func subjectKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
