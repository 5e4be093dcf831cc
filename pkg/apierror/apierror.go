package apierror

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// Kind はユーザーに提示するエラーの分類です。
type Kind string

const (
	KindNetwork           Kind = "NetworkError"
	KindQuotaExceeded     Kind = "QuotaExceeded"
	KindInvalidCredential Kind = "InvalidCredential"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindBadRequest        Kind = "BadRequest"
	KindSafetyBlocked     Kind = "SafetyBlocked"
	KindServerError       Kind = "ServerError"
	KindTimeout           Kind = "Timeout"
	KindEmptyResult       Kind = "EmptyResult"
	KindDownloadFailed    Kind = "DownloadFailed"
	KindNoCredential      Kind = "NoCredential"
	KindUnknown           Kind = "Unknown"
)

// 分類ごとの固定メッセージ。SafetyBlocked と Unknown は元のメッセージをそのまま使います。
const (
	MessageNetwork           = "Network error: could not reach the AI service. Please check your internet connection and try again."
	MessageQuotaExceeded     = "API quota exceeded. You have reached the request limit for your API key. Please wait a moment before trying again, or check your plan and billing details."
	MessageInvalidCredential = "Invalid API key. Please check that the API key in your settings is correct."
	MessagePermissionDenied  = "Permission denied. Your API key does not have access to this model or feature."
	MessageBadRequest        = "The request was rejected by the AI service. Please check your prompt and uploaded files and try again."
	MessageServerError       = "The AI service encountered an internal error. Please try again in a few moments."
	MessageNoCredential      = "No API key is configured. Please add your API key in settings before generating content."
)

// Rule は生のエラーメッセージに含まれる部分文字列と分類の対応です。
type Rule struct {
	Substring string
	Kind      Kind
}

// Rules は上から順に評価される分類表です。最初に一致したものが採用されます。
var Rules = []Rule{
	{Substring: "failed to fetch", Kind: KindNetwork},
	{Substring: "429", Kind: KindQuotaExceeded},
	{Substring: "resource_exhausted", Kind: KindQuotaExceeded},
	{Substring: "quota", Kind: KindQuotaExceeded},
	{Substring: "api key not valid", Kind: KindInvalidCredential},
	{Substring: "api_key_invalid", Kind: KindInvalidCredential},
	{Substring: "permission_denied", Kind: KindPermissionDenied},
	{Substring: "400", Kind: KindBadRequest},
	{Substring: "invalid argument", Kind: KindBadRequest},
	{Substring: "safety polic", Kind: KindSafetyBlocked},
	{Substring: "safety settings", Kind: KindSafetyBlocked},
	{Substring: "500", Kind: KindServerError},
	{Substring: "internal", Kind: KindServerError},
}

// transportHints は Go の HTTP クライアントが返す接続失敗の文言です。
var transportHints = []string{
	"connection refused",
	"no such host",
	"connection reset by peer",
	"network is unreachable",
}

// ErrNoCredential は API キーが未設定のまま生成が呼ばれた場合のエラーです。
var ErrNoCredential = New(KindNoCredential, MessageNoCredential)

// Error は分類済みのエラーです。Message がそのまま呼び出し元に表示されます。
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New は原因を持たない分類済みエラーを生成します。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因付きの分類済みエラーを生成します。
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Classify は生のメッセージを大文字小文字を区別せずに分類表と照合します。
func Classify(raw string) Kind {
	lower := strings.ToLower(raw)
	for _, r := range Rules {
		if strings.Contains(lower, r.Substring) {
			return r.Kind
		}
	}
	for _, hint := range transportHints {
		if strings.Contains(lower, hint) {
			return KindNetwork
		}
	}
	return KindUnknown
}

// MessageFor は分類に対応するユーザー向けメッセージを返します。
// 固定メッセージを持たない分類では raw をそのまま返します。
func MessageFor(kind Kind, raw string) string {
	switch kind {
	case KindNetwork:
		return MessageNetwork
	case KindQuotaExceeded:
		return MessageQuotaExceeded
	case KindInvalidCredential:
		return MessageInvalidCredential
	case KindPermissionDenied:
		return MessagePermissionDenied
	case KindBadRequest:
		return MessageBadRequest
	case KindServerError:
		return MessageServerError
	case KindNoCredential:
		return MessageNoCredential
	default:
		return raw
	}
}

// FromError はバックエンドのエラーを分類し、表示用メッセージに置き換えたエラーを返します。
// 元のエラーは置き換え前に診断ログへ出力します。分類済みのエラーはそのまま返します。
func FromError(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	slog.WarnContext(ctx, "AIバックエンドからエラーが返されました", "error", err)

	kind := Classify(err.Error())
	if kind == KindUnknown && isTransportError(err) {
		kind = KindNetwork
	}
	return Wrap(kind, MessageFor(kind, err.Error()), err)
}

// KindOf はエラーの分類を返します。分類済みでなければ Unknown です。
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// IsKind はエラーが指定の分類かどうかを返します。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
