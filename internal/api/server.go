package api

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	jwtware "github.com/gofiber/jwt/v3"

	"github.com/passaenem/passa-enem-api/internal/ai"
	"github.com/passaenem/passa-enem-api/internal/config"
	"github.com/passaenem/passa-enem-api/internal/ledger"
	"github.com/passaenem/passa-enem-api/internal/payment"
	"github.com/passaenem/passa-enem-api/internal/pdf"
	"github.com/passaenem/passa-enem-api/internal/pkg/supabase"
	"github.com/passaenem/passa-enem-api/pkg/database"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	db       *database.Clients
	producer sarama.SyncProducer
	ledger   *ledger.Ledger
	auth     supabase.Authenticator
	gen      ai.Generator
	payments payment.Client
	uploads  pdf.Storage
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer) (*Server, error) {
	// Initialize upload storage
	localStorage, err := pdf.NewLocalStorage(cfg.Uploads.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	gen, err := ai.NewGeminiClient(cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize question generator: %w", err)
	}

	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))
	app.Use(cache.New(cache.Config{
		Expiration:   cfg.Server.CacheExpiration,
		CacheControl: true,
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		db:       db,
		producer: producer,
		ledger:   ledger.New(db.DB, cfg.Plans.FreeCredits, cfg.Plans.ProCredits),
		auth:     supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey),
		gen:      gen,
		payments: payment.NewMercadoPagoClient(cfg.Payment.BaseURL, cfg.Payment.AccessToken),
		uploads:  localStorage,
	}

	// Routes
	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)
	api.Post("/profile", s.handleCreateProfile)

	// Cron routes are invoked by the external scheduler, not by users
	cron := api.Group("/cron", s.requireCronSecret)
	cron.Get("/expire-plans", s.handleExpirePlans)
	cron.Get("/renew-credits", s.handleRenewCredits)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
	}))
	protected.Get("/profile/:id", s.handleGetProfile)
	protected.Post("/questions/generate", s.handleGenerateQuestions)
	protected.Post("/essay/theme", s.handleEssayTheme)
	protected.Post("/essay/submit", s.handleSubmitEssay)
	protected.Get("/essay/:id", s.handleGetEssay)
	protected.Post("/checkout/sync", s.handleCheckoutSync)

	admin := api.Group("/admin", s.requireAdmin)
	admin.Post("/credits", s.handleAdminCredits)
	admin.Post("/grant-pro", s.handleGrantPro)
	admin.Post("/revoke-pro", s.handleRevokePro)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// currentUserID extracts the authenticated user's ID from the JWT the
// middleware stored on the request.
func (s *Server) currentUserID(c *fiber.Ctx) (string, bool) {
	token, ok := c.Locals("user").(*jwtv4.Token)
	if !ok {
		return "", false
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}

// isAdmin reports whether the given user is the configured administrator.
func (s *Server) isAdmin(userID string) bool {
	return s.cfg.Admin.UserID != "" && userID == s.cfg.Admin.UserID
}

// requireAdmin guards the admin endpoints: the authenticated identity must
// equal the configured administrator ID.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	userID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	if !s.isAdmin(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
	}
	return c.Next()
}

// requireCronSecret guards the sweep endpoints with the scheduler's shared
// secret.
func (s *Server) requireCronSecret(c *fiber.Ctx) error {
	if s.cfg.Cron.Secret == "" || c.Get("X-Cron-Secret") != s.cfg.Cron.Secret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid cron secret",
		})
	}
	return c.Next()
}
