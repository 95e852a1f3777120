package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlyingStore)

	ctx := context.Background()
	id := "pii-conversation"
	conv := sampleConversation(id)
	conv.Context["username"] = "jdoe"
	conv.Context["user_password"] = "secret123"
	conv.Context["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	conv.Topical.Instances["i2"] = domain.NewInstance("i2", "counter", "i1", conv.UpdatedAt)
	conv.Topical.Instances["i2"].State = json.RawMessage(`3`)

	require.NoError(t, secureStore.Save(ctx, id, conv))

	// The caller's conversation is untouched.
	assert.Equal(t, "secret123", conv.Context["user_password"])
	assert.JSONEq(t, `{"password":"hunter2"}`, string(conv.Topical.Instances["i1"].State))

	stored, err := underlyingStore.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.Context["username"])
	assert.Equal(t, middleware.Mask, stored.Context["user_password"])

	details := stored.Context["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])

	// Instance state belongs to its topic and is never rewritten.
	assert.JSONEq(t, `{"password":"hunter2"}`, string(stored.Topical.Instances["i1"].State))
	assert.JSONEq(t, `3`, string(stored.Topical.Instances["i2"].State))
}

func TestWrap_Order(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)

	// PII runs first, so the sealed payload already carries masked values.
	store := middleware.Wrap(underlyingStore,
		middleware.NewPIIMiddleware([]string{"password"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	conv := sampleConversation("c")
	conv.Context["password"] = "hunter2"
	require.NoError(t, store.Save(ctx, "c", conv))

	sealed, err := underlyingStore.Load(ctx, "c")
	require.NoError(t, err)
	assert.NotContains(t, sealed.Context, "password")

	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Context["password"])
	assert.JSONEq(t, `{"password":"hunter2"}`, string(loaded.Topical.Instances["i1"].State))
}
