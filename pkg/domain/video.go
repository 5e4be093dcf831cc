package domain

// VideoOperation は動画生成の長時間オペレーションのハンドルです。
// 完了するか時間切れになるまで再取得され、その後は破棄されます。
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
	// VideoData はバックエンドが URI ではなくバイト列を直接返した場合に入ります。
	VideoData       []byte
	MIMEType        string
	ErrorMessage    string
	FilteredReasons []string
}

// HasOutput は完了したオペレーションが取得可能な動画を持っているかを返します。
func (o *VideoOperation) HasOutput() bool {
	return o != nil && (o.VideoURI != "" || len(o.VideoData) > 0)
}

// VoiceActor は音声合成で選択できる話者です。
type VoiceActor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VoiceName string `json:"voiceName"`
	Style     string `json:"style"`
}

// DefaultVoiceActorID は話者未指定時に使う ID です。
const DefaultVoiceActorID = "kore"

// VoiceActors は選択可能な話者の一覧です。
var VoiceActors = []VoiceActor{
	{ID: "kore", Name: "Kore", VoiceName: "Kore", Style: "firm"},
	{ID: "puck", Name: "Puck", VoiceName: "Puck", Style: "upbeat"},
	{ID: "charon", Name: "Charon", VoiceName: "Charon", Style: "informative"},
	{ID: "aoede", Name: "Aoede", VoiceName: "Aoede", Style: "breezy"},
	{ID: "fenrir", Name: "Fenrir", VoiceName: "Fenrir", Style: "excitable"},
	{ID: "leda", Name: "Leda", VoiceName: "Leda", Style: "youthful"},
	{ID: "zephyr", Name: "Zephyr", VoiceName: "Zephyr", Style: "bright"},
}

// ResolveVoiceName は話者 ID をバックエンドのボイス名に変換します。
// 一覧に無い ID はそのままボイス名として扱います。
func ResolveVoiceName(actorID string) string {
	if actorID == "" {
		actorID = DefaultVoiceActorID
	}
	for _, a := range VoiceActors {
		if a.ID == actorID {
			return a.VoiceName
		}
	}
	return actorID
}
