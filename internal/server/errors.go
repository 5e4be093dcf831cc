package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
)

// ErrorResponse はエラー時のレスポンスです。
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  apierror.Kind `json:"kind,omitempty"`
}

// statusFor はエラー分類を HTTP ステータスに変換します。
func statusFor(kind apierror.Kind) int {
	switch kind {
	case apierror.KindQuotaExceeded:
		return fiber.StatusTooManyRequests
	case apierror.KindInvalidCredential, apierror.KindNoCredential:
		return fiber.StatusUnauthorized
	case apierror.KindPermissionDenied:
		return fiber.StatusForbidden
	case apierror.KindBadRequest:
		return fiber.StatusBadRequest
	case apierror.KindSafetyBlocked, apierror.KindEmptyResult:
		return fiber.StatusUnprocessableEntity
	case apierror.KindNetwork, apierror.KindServerError, apierror.KindDownloadFailed:
		return fiber.StatusBadGateway
	case apierror.KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError は分類済みのエラーをステータスとメッセージに変換して返します。
func writeError(c *fiber.Ctx, err error) error {
	var classified *apierror.Error
	if errors.As(err, &classified) {
		return c.Status(statusFor(classified.Kind)).JSON(ErrorResponse{Error: classified.Message, Kind: classified.Kind})
	}
	slog.ErrorContext(c.UserContext(), "リクエストの処理に失敗しました", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error(), Kind: apierror.KindUnknown})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

// errorHandler は fiber が返すエラーを JSON にそろえます。
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
