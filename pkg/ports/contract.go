package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTraceStoreContract runs a suite of tests to verify that a TraceStore implementation
// adheres to the defined interface contract.
func RunTraceStoreContract(t *testing.T, store TraceStore) {
	ctx := context.Background()
	executionID := "contract-test-execution-" + time.Now().Format("20060102150405")

	event := func(id string, kind domain.EventType, index int) domain.Event {
		return domain.Event{
			Type:          kind,
			Source:        "ft",
			Version:       domain.ProtocolVersion,
			Timestamp:     time.Now().UTC().Truncate(time.Millisecond),
			ExecutionID:   id,
			FunctionIndex: domain.IndexOf(index),
			Data:          map[string]any{domain.DataName: "step"},
		}
	}

	t.Run("Append and Load", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, event(executionID, domain.EventFunctionStart, 0)))
		require.NoError(t, store.Append(ctx, event(executionID, domain.EventPathStart, 0)))
		require.NoError(t, store.Append(ctx, event(executionID, domain.EventFunctionStart, 1)))

		loaded, err := store.Load(ctx, executionID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded, 3)

		// Order of emission is preserved.
		assert.Equal(t, domain.EventFunctionStart, loaded[0].Type)
		assert.Equal(t, domain.EventPathStart, loaded[1].Type)
		index, ok := loaded[2].Index()
		assert.True(t, ok)
		assert.Equal(t, 1, index)
		assert.Equal(t, "step", loaded[2].Data[domain.DataName])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+executionID)
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := executionID + "-delete"
		require.NoError(t, store.Append(ctx, event(id, domain.EventExecutionStart, 0)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound, "Load after Delete should return ErrExecutionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := executionID + "-1"
		id2 := executionID + "-2"
		_ = store.Append(ctx, event(id1, domain.EventExecutionStart, 0))
		_ = store.Append(ctx, event(id2, domain.EventExecutionStart, 0))

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

// RunTreeLoaderContract verifies that a TreeLoader serves exactly the expected trees.
// expected must be sorted.
func RunTreeLoaderContract(t *testing.T, loader TreeLoader, expected []string) {
	t.Run("List", func(t *testing.T) {
		names, err := loader.List()
		require.NoError(t, err)
		assert.Equal(t, expected, names)
	})

	t.Run("Get", func(t *testing.T) {
		for _, name := range expected {
			tree, err := loader.Get(name)
			require.NoError(t, err, "Get(%q)", name)
			require.NotNil(t, tree)
			assert.Equal(t, name, tree.Name())
		}
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := loader.Get("non-existent-tree")
		assert.ErrorIs(t, err, domain.ErrTreeNotFound)
	})
}
