package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shouni/gemini-creative-gateway/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Credential(t *testing.T) {
	s := New("user-1")

	t.Run("未設定なら NoCredential を返すのだ", func(t *testing.T) {
		_, err := s.ActiveCredential()
		require.Error(t, err)
		assert.True(t, errors.Is(err, apierror.ErrNoCredential))
		assert.True(t, apierror.IsKind(err, apierror.KindNoCredential))
		assert.False(t, s.HasCredential())
	})

	t.Run("設定したキーが前後の空白を除いて返る", func(t *testing.T) {
		s.SetActiveCredential("  AIza-test  ")
		key, err := s.ActiveCredential()
		require.NoError(t, err)
		assert.Equal(t, "AIza-test", key)
	})

	t.Run("解除すると再び未設定になる", func(t *testing.T) {
		s.ClearCredential()
		_, err := s.ActiveCredential()
		assert.Error(t, err)
	})

	assert.Equal(t, "user-1", s.UserID())
}

func TestSession_IndependentSessions(t *testing.T) {
	a := New("a")
	b := New("b")
	a.SetActiveCredential("key-a")
	b.SetActiveCredential("key-b")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = a.ActiveCredential() }()
		go func() { defer wg.Done(); b.SetActiveCredential("key-b") }()
	}
	wg.Wait()

	ka, _ := a.ActiveCredential()
	kb, _ := b.ActiveCredential()
	assert.Equal(t, "key-a", ka)
	assert.Equal(t, "key-b", kb)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Minute, time.Minute)

	s1 := r.Get("user-1")
	s1.SetActiveCredential("k1")

	t.Run("同じユーザーには同じセッションを返す", func(t *testing.T) {
		assert.Same(t, s1, r.Get("user-1"))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Drop するとキーも消える", func(t *testing.T) {
		r.Drop("user-1")
		s2 := r.Get("user-1")
		assert.NotSame(t, s1, s2)
		assert.False(t, s2.HasCredential())
	})
}
