package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreStepLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	step, err := store.Step(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StepNone, step)

	require.NoError(t, store.SetStep(ctx, "alice", Step("submit:wait_text")))

	step, err = store.Step(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Step("submit:wait_text"), step)

	// Other users are unaffected.
	step, err = store.Step(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, StepNone, step)
}

func TestMemoryStoreMergeAccumulates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Merge(ctx, "alice", Fields{"assignment_id": "7"}))
	require.NoError(t, store.Merge(ctx, "alice", Fields{"text": "done", "assignment_id": "8"}))

	fields, err := store.GetFields(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Fields{"assignment_id": "8", "text": "done"}, fields)
}

func TestMemoryStoreGetFieldsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Merge(ctx, "alice", Fields{"text": "draft"}))

	fields, err := store.GetFields(ctx, "alice")
	require.NoError(t, err)
	fields["text"] = "mutated"

	again, err := store.GetFields(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "draft", again["text"])
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SetStep(ctx, "alice", Step("give:wait_body")))
	require.NoError(t, store.Merge(ctx, "alice", Fields{"student": "bob"}))
	require.NoError(t, store.Clear(ctx, "alice"))

	step, err := store.Step(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StepNone, step)

	fields, err := store.GetFields(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
