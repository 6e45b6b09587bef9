package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const sidCookie = "sid"

// ensureSID returns the session id of c, issuing a new cookie when the
// current one is missing or not a UUID.
func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies(sidCookie)
	if _, err := uuid.Parse(sid); err == nil {
		return sid
	}
	sid = uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     sidCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
	})
	return sid
}
