// Package admin exposes the operator console surface over HTTP: read-only
// status snapshots, message history and operator-originated broadcast and
// private messages. Operators authenticate with an admin chat account and
// receive a bearer token.
package admin

import (
	"context"
	"strings"
	"time"

	"parley/internal/config"
	"parley/internal/hub"
	"parley/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenTTL bounds operator sessions.
const tokenTTL = 24 * time.Hour

// ChatServer is the in-process status surface the API fronts.
type ChatServer interface {
	ConnectedClients() []hub.SessionInfo
	BroadcastServerMessage(content string)
	SendServerMessageToUser(username, content string) bool
	Hub() *hub.Hub
}

// API is the operator HTTP application.
type API struct {
	cfg      *config.Config
	srv      ChatServer
	accounts *service.AccountService
	messages *service.MessageService
	app      *fiber.App
}

// NewAPI builds the fiber app with all operator routes registered.
func NewAPI(cfg *config.Config, srv ChatServer, accounts *service.AccountService, messages *service.MessageService) *API {
	a := &API{
		cfg:      cfg,
		srv:      srv,
		accounts: accounts,
		messages: messages,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Parley Operator API",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	prom := fiberprometheus.New("parley-admin")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	app.Post("/api/login", a.login)

	api := app.Group("/api", a.authRequired)
	api.Get("/status", a.status)
	api.Get("/messages", a.recentMessages)
	api.Post("/broadcast", a.broadcast)
	api.Post("/message", a.privateMessage)
	api.Put("/users/:username/display-name", a.setDisplayName)

	a.app = app
	return a
}

// App exposes the fiber app for tests.
func (a *API) App() *fiber.App {
	return a.app
}

// Listen serves the API on the configured admin port.
func (a *API) Listen() error {
	return a.app.Listen(":" + a.cfg.AdminPort)
}

// Shutdown stops the HTTP listener.
func (a *API) Shutdown(ctx context.Context) error {
	return a.app.ShutdownWithContext(ctx)
}

func (a *API) login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ok, err := a.accounts.Authenticate(c.Context(), req.Username, req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	admin, err := a.accounts.IsAdmin(c.Context(), req.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if !admin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin privileges required",
		})
	}

	token, err := a.generateToken(req.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{"token": token})
}

func (a *API) generateToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

// authRequired enforces a valid operator bearer token.
func (a *API) authRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authorization header required",
		})
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid authorization header format",
		})
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token claims",
		})
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid token structure - missing subject",
		})
	}

	c.Locals("operator", sub)
	return c.Next()
}

func (a *API) status(c *fiber.Ctx) error {
	clients := a.srv.ConnectedClients()
	online := a.srv.Hub().OnlineUsers()
	total, err := a.messages.Count(c.Context())
	if err != nil {
		total = 0
	}
	return c.JSON(fiber.Map{
		"clients":       clients,
		"online":        online,
		"clientCount":   len(clients),
		"onlineCount":   len(online),
		"messagesTotal": total,
	})
}

func (a *API) recentMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	msgs, err := a.messages.Recent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (a *API) broadcast(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}
	a.srv.BroadcastServerMessage(req.Message)
	return c.JSON(fiber.Map{"status": "sent"})
}

func (a *API) privateMessage(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and message are required",
		})
	}
	if !a.srv.SendServerMessageToUser(req.Username, req.Message) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not online: " + req.Username,
		})
	}
	return c.JSON(fiber.Map{"status": "sent"})
}

func (a *API) setDisplayName(c *fiber.Ctx) error {
	username := c.Params("username")
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.BodyParser(&req); err != nil || req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Display name is required",
		})
	}
	if err := a.accounts.SetDisplayName(c.Context(), username, req.DisplayName); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found: " + username,
		})
	}
	return c.JSON(fiber.Map{"status": "updated"})
}
