package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{}

func (failing) Notify(context.Context, Notification) error { return errors.New("unreachable") }

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory(2)
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, h.Notify(ctx, Notification{Level: LevelSuccess, Title: title}))
	}
	items := h.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Title)
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "three", last.Title)
	assert.False(t, last.At.IsZero())
	assert.Equal(t, 2, h.Count(LevelSuccess))
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := Writer{W: &buf}
	require.NoError(t, w.Notify(context.Background(), Notification{Level: LevelError, Title: "Cancel failed", Message: "the task no longer exists"}))
	assert.Equal(t, "✗ Cancel failed: the task no longer exists\n", buf.String())
}

func TestMulti_AttemptsAll(t *testing.T) {
	h := NewHistory(0)
	m := NewMulti(failing{}, h)
	err := m.Notify(context.Background(), Notification{Level: LevelInfo, Title: "x"})
	assert.Error(t, err)
	assert.Len(t, h.Items(), 1)
}
