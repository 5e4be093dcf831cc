package prompts

import (
	_ "embed"
)

// Kind はプロンプトビルダーの種類です。
type Kind string

const (
	KindContentIdeas     Kind = "content-ideas"
	KindMarketingCopy    Kind = "marketing-copy"
	KindProductPhoto     Kind = "product-photo"
	KindModelPhoto       Kind = "model-photo"
	KindReviewStoryboard Kind = "review-storyboard"
	KindSupportAgent     Kind = "support-agent"
)

// RandomSentinel はユーザーが「おまかせ」を選んだことを表す値です。
const RandomSentinel = "Random"

var (
	//go:embed templates/content_ideas.md
	contentIdeasTemplate string
	//go:embed templates/marketing_copy.md
	marketingCopyTemplate string
	//go:embed templates/product_photo.md
	productPhotoTemplate string
	//go:embed templates/model_photo.md
	modelPhotoTemplate string
	//go:embed templates/review_storyboard.md
	reviewStoryboardTemplate string
	//go:embed templates/support_agent.md
	supportAgentTemplate string
)

// allTemplates は種類とテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[Kind]string{
	KindContentIdeas:     contentIdeasTemplate,
	KindMarketingCopy:    marketingCopyTemplate,
	KindProductPhoto:     productPhotoTemplate,
	KindModelPhoto:       modelPhotoTemplate,
	KindReviewStoryboard: reviewStoryboardTemplate,
	KindSupportAgent:     supportAgentTemplate,
}

// Kinds は利用可能な種類の一覧を返します。
func Kinds() []Kind {
	return []Kind{
		KindContentIdeas,
		KindMarketingCopy,
		KindProductPhoto,
		KindModelPhoto,
		KindReviewStoryboard,
		KindSupportAgent,
	}
}
