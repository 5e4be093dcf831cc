// Package server は生成ゲートウェイを HTTP API として公開します。
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/shouni/gemini-creative-gateway/internal/storage"
	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/prompts"
	"github.com/shouni/gemini-creative-gateway/pkg/session"
	"github.com/shouni/gemini-creative-gateway/pkg/webhook"
)

const (
	// HeaderUserID はセッションを識別するヘッダーです。
	HeaderUserID = "X-User-ID"
	localSession = "session"
	bodyLimit    = 32 * 1024 * 1024
)

// GatewayFactory はセッションに紐づくゲートウェイを返します。
type GatewayFactory func(s *session.Session) (*generator.Gateway, error)

// WebhookService は Webhook の設定と疎通確認を行います。
type WebhookService interface {
	SetWebhookURL(ctx context.Context, userID, webhookURL string) error
	SendTest(ctx context.Context, userID string) webhook.TestResult
}

// MediaArchive は履歴のメディアを保存して URL を返します。
type MediaArchive interface {
	Put(ctx context.Context, userID, itemID string, m domain.Media) (string, error)
}

// Deps はサーバーの依存関係です。Archive と Metrics は省略できます。
type Deps struct {
	Sessions *session.Registry
	Gateways GatewayFactory
	Store    storage.Store
	Webhooks WebhookService
	Prompts  *prompts.Builder
	Archive  MediaArchive
	Metrics  http.Handler
	Now      func() time.Time
}

// Handler は HTTP ハンドラーの集合です。
type Handler struct {
	deps Deps
}

// New はミドルウェアとルートを設定した fiber.App を返します。
func New(deps Deps) (*fiber.App, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if deps.Gateways == nil {
		return nil, fmt.Errorf("gateway factory is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("webhook service is required")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	SetupRoutes(app, &Handler{deps: deps})
	return app, nil
}

// SetupRoutes はルートを登録します。
func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if h.deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.deps.Metrics))
	}

	v1 := app.Group("/v1")
	v1.Get("/voices", h.ListVoices)
	v1.Post("/prompts/:kind", h.BuildPrompt)

	user := v1.Group("", h.requireSession)
	user.Put("/session/credential", h.SetCredential)
	user.Delete("/session/credential", h.ClearCredential)
	user.Post("/credentials/verify", h.VerifyCredential)

	user.Post("/generate/text", h.GenerateText)
	user.Post("/generate/multimodal", h.GenerateMultimodal)
	user.Post("/generate/images", h.GenerateImages)
	user.Post("/generate/compose", h.ComposeImage)
	user.Post("/generate/video", h.GenerateVideo)
	user.Post("/generate/voice", h.GenerateVoice)

	user.Get("/logs", h.ListLogs)
	user.Delete("/logs", h.ClearLogs)
	user.Get("/history", h.ListHistory)
	user.Post("/history", h.AddHistory)

	user.Get("/webhook", h.GetWebhook)
	user.Put("/webhook", h.SetWebhook)
	user.Post("/webhook/test", h.TestWebhook)
}

// requireSession は X-User-ID ヘッダーからセッションを取り出します。
func (h *Handler) requireSession(c *fiber.Ctx) error {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: HeaderUserID + " header is required"})
	}
	c.Locals(localSession, h.deps.Sessions.Get(userID))
	return c.Next()
}

func sessionOf(c *fiber.Ctx) *session.Session {
	s, _ := c.Locals(localSession).(*session.Session)
	return s
}

func (h *Handler) gateway(c *fiber.Ctx) (*generator.Gateway, error) {
	return h.deps.Gateways(sessionOf(c))
}

func newID(prefix string) string {
	return prefix + uuid.NewString()
}
