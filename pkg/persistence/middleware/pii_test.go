package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "^ssn"})
	require.NoError(t, err)
	store := mw(underlying)

	ctx := context.Background()
	payload := domain.Payload{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
		"cards": []any{map[string]any{"password": "1234"}},
	}
	ev := domain.Event{
		Type:          domain.EventFunctionStart,
		ExecutionID:   "e1",
		FunctionIndex: domain.IndexOf(0),
		Data:          map[string]any{domain.DataPayload: payload},
	}
	require.NoError(t, store.Append(ctx, ev))

	assert.Equal(t, "secret123", payload["user_password"], "original event must not change")

	stored, err := underlying.Load(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	masked := stored[0].Data[domain.DataPayload].(domain.Payload)
	assert.Equal(t, "jdoe", masked["username"])
	assert.Equal(t, middleware.Mask, masked["user_password"])
	assert.Equal(t, middleware.Mask, masked["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "123 St", masked["details"].(map[string]any)["address"])
	assert.Equal(t, middleware.Mask, masked["cards"].([]any)[0].(map[string]any)["password"])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)
	require.NoError(t, store.Delete(ctx, "e1"))
	_, err = store.Load(ctx, "e1")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}
