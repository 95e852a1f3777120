package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConversationStoreContract verifies that a ConversationStore implementation
// adheres to the interface contract, including a lossless round-trip of the
// instance store.
func RunConversationStoreContract(t *testing.T, store ports.ConversationStore) {
	t.Helper()
	ctx := context.Background()
	convID := "contract-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		conv := sampleConversation(convID)

		require.NoError(t, store.Save(ctx, convID, conv), "Save should not return error")

		loaded, err := store.Load(ctx, convID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, convID, loaded.ID)
		assert.Equal(t, "i1", loaded.Topical.RootInstanceID)
		assert.True(t, loaded.Topical.Started)
		assert.Equal(t, uint64(2), loaded.Topical.Seq)
		assert.Equal(t, "bar", loaded.Context["foo"])
		// JSON backends turn numbers into float64; only presence is part of the contract.
		assert.NotNil(t, loaded.Context["count"])

		require.Len(t, loaded.Topical.Instances, 2)
		child := loaded.Topical.Instances["i2"]
		require.NotNil(t, child)
		assert.Equal(t, "question", child.TopicName)
		assert.Equal(t, "i1", child.CallbackID)
		assert.JSONEq(t, `{"asked":true}`, string(child.State))
		assert.True(t, child.Completed())
		require.NotNil(t, child.CompletedAt)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		conv := sampleConversation(convID)
		conv.Turns = 7
		require.NoError(t, store.Save(ctx, convID, conv))

		loaded, err := store.Load(ctx, convID)
		require.NoError(t, err)
		assert.Equal(t, 7, loaded.Turns)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+convID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, convID, sampleConversation(convID)))

		require.NoError(t, store.Delete(ctx, convID), "Delete should not return error")

		_, err := store.Load(ctx, convID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")

		assert.NoError(t, store.Delete(ctx, convID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := convID + "-1"
		id2 := convID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewConversation(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewConversation(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

func sampleConversation(id string) *domain.Conversation {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conv := domain.NewConversation(id)
	conv.Context["foo"] = "bar"
	conv.Context["count"] = 42
	conv.Topical.Started = true
	conv.Topical.RootInstanceID = "i1"
	conv.Topical.Seq = 2
	conv.UpdatedAt = now

	root := domain.NewInstance("i1", "host", "", now)
	root.State = json.RawMessage(`{"child":"i2"}`)
	child := domain.NewInstance("i2", "question", "i1", now)
	child.State = json.RawMessage(`{"asked":true}`)
	child.MarkCompleted(now)

	conv.Topical.Instances["i1"] = root
	conv.Topical.Instances["i2"] = child
	return conv
}
