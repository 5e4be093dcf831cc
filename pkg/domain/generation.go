package domain

// Modality はゲートウェイが扱う生成の種別です。
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityMultimodal Modality = "multimodal"
	ModalityImage      Modality = "image"
	ModalityImageEdit  Modality = "imageEdit"
	ModalityVideo      Modality = "video"
	ModalityVoice      Modality = "voice"
	// ModalityVerify は API キー検証の監査ログにだけ使います。
	ModalityVerify Modality = "verify"
)

// Attachment はリクエストに添付される画像などのバイナリです。
// Data が空で URL が指定されている場合、アダプター層が URL から取得します。
type Attachment struct {
	Data     []byte
	MIMEType string
	URL      string
}

// IsEmpty は中身も参照先も持たない添付かどうかを返します。
func (a Attachment) IsEmpty() bool {
	return len(a.Data) == 0 && a.URL == ""
}

// Media は生成された不透明なバイト列とその MIME タイプです。
type Media struct {
	Data     []byte
	MIMEType string
}

// GenerationRequest はユーザー操作ごとに作られる生成要求です。
// 永続化はされず、ログには要約した形でのみ残ります。
type GenerationRequest struct {
	Modality    Modality
	Prompt      string
	Attachments []Attachment
	Params      map[string]any
}

// GenerationResult は生成結果です。要求したモダリティに関係するフィールドだけが埋まります。
type GenerationResult struct {
	Text  string
	Image *Media
	Video *Media
	Audio *Media
}

// ComposeResult は画像合成の結果です。テキストと画像のどちらか、または両方が入ります。
// 画像が無いことはエラーではありません。
type ComposeResult struct {
	Text  string
	Image *Media
}

// PersonPolicy は人物生成の許可レベルです。
type PersonPolicy string

const (
	PersonPolicyDefault    PersonPolicy = ""
	PersonPolicyDontAllow  PersonPolicy = "dont_allow"
	PersonPolicyAllowAdult PersonPolicy = "allow_adult"
	PersonPolicyAllowAll   PersonPolicy = "allow_all"
)
