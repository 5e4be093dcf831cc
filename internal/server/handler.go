package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
	"github.com/shouni/gemini-creative-gateway/pkg/generator"
	"github.com/shouni/gemini-creative-gateway/pkg/prompts"
)

const historyIDPrefix = "hist_"

func (h *Handler) SetCredential(c *fiber.Ctx) error {
	var req CredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return badRequest(c, "apiKey is required")
	}
	sessionOf(c).SetActiveCredential(req.APIKey)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ClearCredential(c *fiber.Ctx) error {
	sessionOf(c).ClearCredential()
	return c.SendStatus(fiber.StatusNoContent)
}

// VerifyCredential は指定のキー、省略時は設定中のキーを検証します。
func (h *Handler) VerifyCredential(c *fiber.Ctx) error {
	var req CredentialRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		active, err := sessionOf(c).ActiveCredential()
		if err != nil {
			return writeError(c, err)
		}
		key = active
	}

	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(VerifyResponse{Valid: g.VerifyCredential(c.UserContext(), key)})
}

func (h *Handler) GenerateText(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}

	var opts []generator.TextOption
	if req.SystemPrompt != "" {
		opts = append(opts, generator.WithSystemPrompt(req.SystemPrompt))
	}
	text, err := g.GenerateText(c.UserContext(), req.Prompt, opts...)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(TextResponse{Text: text})
}

func (h *Handler) GenerateMultimodal(c *fiber.Ctx) error {
	var req MultimodalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}
	text, err := g.GenerateMultimodalText(c.UserContext(), req.Prompt, toAttachments(req.Attachments))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(TextResponse{Text: text})
}

func (h *Handler) GenerateImages(c *fiber.Ctx) error {
	var req ImagesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}

	images, err := g.GenerateImages(c.UserContext(), generator.ImageRequest{
		Prompt:         req.Prompt,
		AspectRatio:    req.AspectRatio,
		Count:          req.Count,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		HDR:            req.HDR,
		PersonPolicy:   domain.PersonPolicy(req.PersonPolicy),
	})
	if err != nil {
		return writeError(c, err)
	}

	resp := ImagesResponse{Images: make([]MediaJSON, 0, len(images))}
	for i := range images {
		resp.Images = append(resp.Images, *toMediaJSON(&images[i]))
	}
	return c.JSON(resp)
}

func (h *Handler) ComposeImage(c *fiber.Ctx) error {
	var req MultimodalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := g.ComposeImage(c.UserContext(), req.Prompt, toAttachments(req.Attachments))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ComposeResponse{Text: res.Text, Image: toMediaJSON(res.Image)})
}

func (h *Handler) GenerateVideo(c *fiber.Ctx) error {
	var req VideoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}

	vr := generator.VideoRequest{Prompt: req.Prompt, Model: req.Model, AspectRatio: req.AspectRatio}
	if req.Image != nil {
		vr.Image = &domain.Attachment{Data: req.Image.Data, MIMEType: req.Image.MIMEType, URL: req.Image.URL}
	}
	video, err := g.GenerateVideo(c.UserContext(), vr)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(VideoResponse{Video: toMediaJSON(video)})
}

func (h *Handler) GenerateVoice(c *fiber.Ctx) error {
	var req VoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.gateway(c)
	if err != nil {
		return writeError(c, err)
	}
	audio, err := g.GenerateVoice(c.UserContext(), generator.VoiceRequest{
		Script:  req.Script,
		ActorID: req.ActorID,
		Speed:   valueOr(req.Speed, 1),
		Pitch:   valueOr(req.Pitch, 0),
		Volume:  valueOr(req.Volume, 1),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(VoiceResponse{Audio: toMediaJSON(audio)})
}

func (h *Handler) ListVoices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"voices": domain.VoiceActors, "default": domain.DefaultVoiceActorID})
}

func (h *Handler) BuildPrompt(c *fiber.Ctx) error {
	kind := prompts.Kind(c.Params("kind"))
	prompt, err := h.deps.Prompts.BuildJSON(kind, c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(PromptResponse{Kind: string(kind), Prompt: prompt})
}

func (h *Handler) ListLogs(c *fiber.Ctx) error {
	logs, err := h.deps.Store.ListLogs(c.UserContext(), sessionOf(c).UserID(), c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	if logs == nil {
		logs = []domain.LogEntry{}
	}
	return c.JSON(LogsResponse{Logs: logs})
}

func (h *Handler) ClearLogs(c *fiber.Ctx) error {
	n, err := h.deps.Store.ClearLogs(c.UserContext(), sessionOf(c).UserID())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ClearResponse{Deleted: n})
}

func (h *Handler) ListHistory(c *fiber.Ctx) error {
	items, err := h.deps.Store.ListHistory(c.UserContext(), sessionOf(c).UserID(), c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}
	return c.JSON(HistoryResponse{Items: items})
}

// AddHistory は履歴を保存します。メディアが添付され、保存先があればそこへ退避します。
func (h *Handler) AddHistory(c *fiber.Ctx) error {
	var req HistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Type == "" {
		return badRequest(c, "type is required")
	}

	userID := sessionOf(c).UserID()
	item := domain.HistoryItem{
		ID:        newID(historyIDPrefix),
		UserID:    userID,
		Type:      req.Type,
		Prompt:    req.Prompt,
		Result:    req.Result,
		MediaURL:  req.MediaURL,
		CreatedAt: h.deps.Now().UTC(),
	}

	if req.Media != nil && len(req.Media.Data) > 0 {
		if h.deps.Archive == nil {
			return badRequest(c, "media archive is not configured")
		}
		url, err := h.deps.Archive.Put(c.UserContext(), userID, item.ID, domain.Media{Data: req.Media.Data, MIMEType: req.Media.MIMEType})
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "Failed to archive media: " + err.Error()})
		}
		item.MediaURL = url
	}

	if err := h.deps.Store.AddHistoryItem(c.UserContext(), item); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *Handler) GetWebhook(c *fiber.Ctx) error {
	url, err := h.deps.Store.WebhookURL(c.UserContext(), sessionOf(c).UserID())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(WebhookResponse{URL: url})
}

func (h *Handler) SetWebhook(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.deps.Webhooks.SetWebhookURL(c.UserContext(), sessionOf(c).UserID(), strings.TrimSpace(req.URL)); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) TestWebhook(c *fiber.Ctx) error {
	return c.JSON(h.deps.Webhooks.SendTest(c.UserContext(), sessionOf(c).UserID()))
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
