package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Builder は機能ごとのプロンプトを組み立てます。
// CustomPrompt が空白以外を含む場合は、他のオプションを無視してそれを返します。
type Builder struct {
	templates map[Kind]*template.Template
}

var funcs = template.FuncMap{
	"orDefault": orDefault,
	"count":     countOrDefault,
}

// NewBuilder は埋め込みテンプレートを解析して Builder を初期化します。
func NewBuilder() (*Builder, error) {
	parsed := make(map[Kind]*template.Template, len(allTemplates))
	for kind, content := range allTemplates {
		if content == "" {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' (go:embed) の読み込みに失敗しました: 内容が空です", kind)
		}
		tmpl, err := template.New(string(kind)).Funcs(funcs).Option("missingkey=error").Parse(content)
		if err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", kind, err)
		}
		parsed[kind] = tmpl
	}
	return &Builder{templates: parsed}, nil
}

// ContentIdeas はコンテンツアイデア用のプロンプトを返します。
func (b *Builder) ContentIdeas(o ContentIdeasOptions) (string, error) {
	return b.build(KindContentIdeas, o.CustomPrompt, o)
}

// MarketingCopy はマーケティングコピー用のプロンプトを返します。
func (b *Builder) MarketingCopy(o MarketingCopyOptions) (string, error) {
	return b.build(KindMarketingCopy, o.CustomPrompt, o)
}

// ProductPhoto は商品写真用のプロンプトを返します。
func (b *Builder) ProductPhoto(o ProductPhotoOptions) (string, error) {
	return b.build(KindProductPhoto, o.CustomPrompt, o)
}

// ModelPhoto は TikTok モデル写真用のプロンプトを返します。
func (b *Builder) ModelPhoto(o ModelPhotoOptions) (string, error) {
	return b.build(KindModelPhoto, o.CustomPrompt, o)
}

// ReviewStoryboard はレビュー動画の絵コンテ用のプロンプトを返します。
func (b *Builder) ReviewStoryboard(o ReviewStoryboardOptions) (string, error) {
	return b.build(KindReviewStoryboard, o.CustomPrompt, o)
}

// SupportAgent はサポートエージェントのシステムプロンプトを返します。
func (b *Builder) SupportAgent(o SupportAgentOptions) (string, error) {
	return b.build(KindSupportAgent, o.CustomPrompt, o)
}

// BuildJSON は JSON のオプションを種類に応じてデコードし、プロンプトを返します。
func (b *Builder) BuildJSON(kind Kind, raw []byte) (string, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("オプションの解析に失敗しました: %w", err)
		}
		return nil
	}

	switch kind {
	case KindContentIdeas:
		var o ContentIdeasOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.ContentIdeas(o)
	case KindMarketingCopy:
		var o MarketingCopyOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.MarketingCopy(o)
	case KindProductPhoto:
		var o ProductPhotoOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.ProductPhoto(o)
	case KindModelPhoto:
		var o ModelPhotoOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.ModelPhoto(o)
	case KindReviewStoryboard:
		var o ReviewStoryboardOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.ReviewStoryboard(o)
	case KindSupportAgent:
		var o SupportAgentOptions
		if err := decode(&o); err != nil {
			return "", err
		}
		return b.SupportAgent(o)
	default:
		return "", fmt.Errorf("不明なプロンプトの種類です: '%s'", kind)
	}
}

func (b *Builder) build(kind Kind, custom string, data any) (string, error) {
	if c := strings.TrimSpace(custom); c != "" {
		return c, nil
	}

	tmpl, ok := b.templates[kind]
	if !ok {
		return "", fmt.Errorf("不明なプロンプトの種類です: '%s'", kind)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// orDefault は空または "Random" の値を中立的な既定値に置き換えます。
func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, RandomSentinel) {
		return def
	}
	return v
}

func countOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
