package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kivu-auth/kivu_auth/internal/analytics"
	"github.com/kivu-auth/kivu_auth/internal/auth"
	"github.com/kivu-auth/kivu_auth/internal/authstate"
	"github.com/kivu-auth/kivu_auth/internal/config"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/middleware"
	"github.com/kivu-auth/kivu_auth/internal/notification"
	"github.com/kivu-auth/kivu_auth/internal/provider"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// Deps aggregates shared dependencies required to wire routes. DB and
// Cache are optional: without them the service runs fully in memory.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Storage scopes: durable survives restarts when Redis is
	// configured, ephemeral is always process-local.
	scopes := storage.Scopes{
		Durable:   storage.NewMemoryScope(),
		Ephemeral: storage.NewMemoryScope(),
	}
	if d.Cache != nil {
		scopes.Durable = storage.NewRedisScope(d.Cache, "authsvc")
	}

	var repo identity.Repository
	if d.DB != nil {
		repo = identity.NewPostgresRepository(d.DB)
	} else {
		repo = identity.NewSeededRepository()
	}

	tokens := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.AppName)
	pdeps := provider.Deps{
		Repo:            repo,
		Scopes:          scopes,
		Notifier:        notification.NewLoggerNotifier(d.Logger),
		Tracker:         analytics.NewLogTracker(d.Logger),
		Tokens:          tokens,
		SessionDuration: d.Cfg.SessionDuration,
		Logger:          d.Logger,
	}

	registry := provider.NewRegistry(scopes.Durable, d.Cfg.DefaultProvider, d.Logger)
	if d.Cfg.Providers.TraditionalEnabled {
		registry.Register(provider.NewTraditional(pdeps))
	}
	if d.Cfg.Providers.SecureEnabled {
		registry.Register(provider.NewSecure(pdeps))
	}
	if d.Cfg.Providers.EasyEnabled {
		registry.Register(provider.NewEasy(pdeps, d.Cfg.Providers.EasyMethods))
	}
	if len(registry.Names()) == 0 {
		return errors.New("no auth providers enabled")
	}
	if err := registry.InitFromStorage(context.Background()); err != nil {
		return err
	}

	svc := auth.NewService(registry, authstate.New(), d.Logger)
	handler := auth.NewHandler(svc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, handler, rateLimiter)

	// Protected profile endpoint backed by the session token.
	protected := api.Group("", middleware.JWTAuth(tokens))
	protected.Get("/me", func(c *fiber.Ctx) error {
		email, _ := c.Locals("user_email").(string)
		if email == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := repo.FindByEmail(c.UserContext(), email)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":      user.ID,
			"email":        user.Email,
			"name":         user.Name,
			"role":         user.Role,
			"phone":        user.Phone,
			"totp_enabled": user.TOTPEnabled,
			"created_at":   user.CreatedAt,
		})
	})

	return nil
}
