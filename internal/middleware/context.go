package middleware

import "github.com/labstack/echo/v4"

// Context keys used to store authentication metadata.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)

// Principal is the authenticated caller as set by JWT.
type Principal struct {
	ID    string
	Email string
	Role  string
}

// Actor returns the caller of the request. Fields are empty on public routes.
func Actor(c echo.Context) Principal {
	get := func(key string) string {
		v, _ := c.Get(key).(string)
		return v
	}
	return Principal{ID: get(ContextKeyUserID), Email: get(ContextKeyUserEmail), Role: get(ContextKeyUserRole)}
}
