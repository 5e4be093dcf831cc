package domain

// Notification は成功した生成結果を通知ポートへ渡すための値です。
// 呼び出し元が保持する結果とは独立したコピーとして扱われます。
type Notification struct {
	Type   PayloadType
	Prompt string
	Text   string
	Media  *Media
}
