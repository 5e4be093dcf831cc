package domain

import "time"

// LogStatus は API 呼び出しの結果です。
type LogStatus string

const (
	LogStatusSuccess LogStatus = "Success"
	LogStatusError   LogStatus = "Error"
)

// LogEntry はゲートウェイ呼び出し 1 回につき 1 件作られる監査ログです。
// 追記のみで、更新はされません。
type LogEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Modality      Modality  `json:"modality"`
	Model         string    `json:"model"`
	PromptSummary string    `json:"promptSummary"`
	OutputSummary string    `json:"outputSummary"`
	TokenCount    int       `json:"tokenCount"`
	Status        LogStatus `json:"status"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	MediaPreview  string    `json:"mediaPreview,omitempty"`
}

// HistoryItem は View 層が成功した生成の後に保存する履歴です。
type HistoryItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Prompt    string    `json:"prompt"`
	Result    string    `json:"result"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
