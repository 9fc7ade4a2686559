package repository

import (
	"context"
	"fmt"
	"testing"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLogAndCount(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Log(ctx, &models.ChatMessage{
		Sender: "alice", Content: "hello", Kind: models.KindGlobal,
	}))
	require.NoError(t, repo.Log(ctx, &models.ChatMessage{
		Sender: "alice", Receiver: "bob", Content: "psst", Kind: models.KindPrivate,
	}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMessageRecentNewestFirst(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Log(ctx, &models.ChatMessage{
			Sender: "alice", Content: fmt.Sprintf("msg %d", i), Kind: models.KindGlobal,
		}))
	}

	msgs, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 5", msgs[0].Content)
	assert.Equal(t, "msg 4", msgs[1].Content)
	assert.Equal(t, "msg 3", msgs[2].Content)
}

func TestMessageRecentClampsLimit(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Log(ctx, &models.ChatMessage{Sender: "a", Content: "x", Kind: models.KindGlobal}))

	msgs, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	msgs, err = repo.Recent(ctx, 100000)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
