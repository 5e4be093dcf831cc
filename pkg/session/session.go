package session

import (
	"strings"
	"sync"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
)

// Session はログイン中のユーザー ID と有効な API キーを保持します。
// ゲートウェイはプロセス全体の状態ではなく、このオブジェクトからキーを読みます。
type Session struct {
	mu         sync.RWMutex
	userID     string
	credential string
}

// New はユーザー ID を指定して Session を生成します。
func New(userID string) *Session {
	return &Session{userID: userID}
}

// UserID はセッションのユーザー ID を返します。未ログインなら空文字です。
func (s *Session) UserID() string {
	return s.userID
}

// SetActiveCredential は有効な API キーを設定します。空文字を渡すと解除されます。
func (s *Session) SetActiveCredential(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = strings.TrimSpace(key)
}

// ClearCredential は API キーを解除します。
func (s *Session) ClearCredential() {
	s.SetActiveCredential("")
}

// ActiveCredential は有効な API キーを返します。
// 未設定の場合は apierror.ErrNoCredential を返します。
func (s *Session) ActiveCredential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credential == "" {
		return "", apierror.ErrNoCredential
	}
	return s.credential, nil
}

// HasCredential は API キーが設定済みかを返します。
func (s *Session) HasCredential() bool {
	_, err := s.ActiveCredential()
	return err == nil
}
