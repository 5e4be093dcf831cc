package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shouni/gemini-creative-gateway/pkg/domain"
)

// truncate はログ用に文字列をルーン単位で切り詰めます。
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// mediaPreview は小さい画像だけを data URI としてログに残します。
func mediaPreview(m *domain.Media) string {
	if m == nil || len(m.Data) == 0 || len(m.Data) > previewMaxBytes {
		return ""
	}
	if !strings.HasPrefix(m.MIMEType, "image/") {
		return ""
	}
	return "data:" + m.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

func mediaSummary(kind string, m *domain.Media) string {
	if m == nil {
		return "no " + kind
	}
	return fmt.Sprintf("Generated %s (%d bytes, %s)", kind, len(m.Data), m.MIMEType)
}

// systemClock は実時間で動く Clock です。
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
