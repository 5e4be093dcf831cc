package prompts

// ContentIdeasOptions はコンテンツアイデア生成の入力です。
type ContentIdeasOptions struct {
	Topic        string `json:"topic"`
	Platform     string `json:"platform"`
	Audience     string `json:"audience"`
	Tone         string `json:"tone"`
	Count        int    `json:"count"`
	CustomPrompt string `json:"customPrompt"`
}

// MarketingCopyOptions はマーケティングコピー生成の入力です。
type MarketingCopyOptions struct {
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription"`
	Audience           string `json:"audience"`
	Tone               string `json:"tone"`
	Format             string `json:"format"`
	Language           string `json:"language"`
	CustomPrompt       string `json:"customPrompt"`
}

// ProductPhotoOptions は商品写真生成の入力です。
type ProductPhotoOptions struct {
	ProductName  string `json:"productName"`
	Background   string `json:"background"`
	Lighting     string `json:"lighting"`
	Angle        string `json:"angle"`
	Style        string `json:"style"`
	Mood         string `json:"mood"`
	CustomPrompt string `json:"customPrompt"`
}

// ModelPhotoOptions は TikTok 向けのモデル着用・紹介写真の入力です。
type ModelPhotoOptions struct {
	ProductName      string `json:"productName"`
	ModelDescription string `json:"modelDescription"`
	Pose             string `json:"pose"`
	Outfit           string `json:"outfit"`
	Setting          string `json:"setting"`
	CameraAngle      string `json:"cameraAngle"`
	Style            string `json:"style"`
	CustomPrompt     string `json:"customPrompt"`
}

// ReviewStoryboardOptions は商品レビュー動画の絵コンテの入力です。
type ReviewStoryboardOptions struct {
	ProductName  string `json:"productName"`
	KeyBenefits  string `json:"keyBenefits"`
	Scenes       int    `json:"scenes"`
	Duration     string `json:"duration"`
	Platform     string `json:"platform"`
	Style        string `json:"style"`
	CustomPrompt string `json:"customPrompt"`
}

// SupportAgentOptions はサポートエージェントのシステムプロンプトの入力です。
type SupportAgentOptions struct {
	BusinessName string `json:"businessName"`
	ProductInfo  string `json:"productInfo"`
	Policies     string `json:"policies"`
	Tone         string `json:"tone"`
	Language     string `json:"language"`
	CustomPrompt string `json:"customPrompt"`
}
