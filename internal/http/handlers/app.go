package handlers

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "estatelist/internal/log"
)

const csrfCookie = "csrf_"

// AppOptions are the knobs of NewApp that differ between serve and tests.
type AppOptions struct {
	Views      fiber.Views
	StaticDir  string
	RateMax    int
	RateWindow time.Duration
	// BodyLimit caps request bodies in bytes.
	BodyLimit int
	// AccessLog enables fiber's access log middleware, written to LogOutput.
	AccessLog bool
	LogOutput io.Writer
}

// ErrorHandler logs err and shows a friendly page without internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code = fe.Code
		msg = fe.Message
		applog.Info(c, "server.client_error", map[string]any{"code": code})
	} else {
		applog.Error(c, "server.error", err, nil)
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// NewApp builds the web front end with its middleware chain and routes.
func NewApp(opts AppOptions, deps *Deps) *fiber.App {
	if opts.RateMax <= 0 {
		opts.RateMax = 60
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 << 20 // 1 MiB
	}

	app := fiber.New(fiber.Config{
		Views:                 opts.Views,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = opts.BodyLimit

	app.Use(requestid.New())
	if opts.AccessLog {
		out := opts.LogOutput
		if out == nil {
			out = os.Stdout
		}
		app.Use(logger.New(logger.Config{Output: out}))
	}
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        opts.RateMax,
		Expiration: opts.RateWindow,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/static/")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("notfound", fiber.Map{"Message": "Too many requests. Please slow down."})
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     csrfCookie,
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	if opts.StaticDir != "" {
		app.Static("/static", opts.StaticDir)
	}

	Register(app, deps)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return notFound(c, "Page not found")
	})
	return app
}

// Register mounts the property routes.
func Register(r fiber.Router, deps *Deps) {
	h := deps.PropertyHandler

	r.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/properties") })

	r.Get("/properties", h.List)
	r.Get("/properties/new", h.NewForm)
	r.Get("/properties/close", h.Close)
	r.Get("/properties/current", h.Current)
	r.Get("/properties/search", h.Search)
	r.Get("/properties/filter", h.Filter)
	r.Post("/properties", h.Create)
	r.Post("/properties/next", h.Next)
	r.Post("/properties/prev", h.Prev)

	r.Get("/properties/:id/edit", h.EditForm)
	r.Post("/properties/:id", h.Update)
	r.Get("/properties/:id/delete", h.ConfirmDelete)
	r.Post("/properties/:id/delete", h.Delete)
}
