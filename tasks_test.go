package glaucoscan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskTable_OlderGenerationCannotReplaceNewer(t *testing.T) {
	tt := newTaskTable()
	ctx := context.Background()

	// An upload on the fresh generation is already reading when a late
	// analysis timer for the previous one tries to register.
	read := tt.start(ctx, "s", 3, taskRead)
	timer := tt.start(ctx, "s", 2, taskTimer)

	assert.NoError(t, read.Err())
	assert.ErrorIs(t, timer.Err(), context.Canceled)
	assert.True(t, tt.has("s", 3))

	// The refused task's cleanup leaves the newer one in place.
	tt.finish("s", 2, taskTimer)
	assert.True(t, tt.has("s", 3))
	assert.Equal(t, 1, tt.len())

	tt.finish("s", 3, taskRead)
	assert.ErrorIs(t, read.Err(), context.Canceled)
	assert.Equal(t, 0, tt.len())
}

func TestTaskTable_NewerGenerationReplacesOlder(t *testing.T) {
	tt := newTaskTable()
	ctx := context.Background()

	old := tt.start(ctx, "s", 1, taskTimer)
	fresh := tt.start(ctx, "s", 2, taskRead)

	assert.ErrorIs(t, old.Err(), context.Canceled)
	assert.NoError(t, fresh.Err())
	assert.True(t, tt.has("s", 2))
}

func TestTaskTable_CancelBeforeSparesNewGeneration(t *testing.T) {
	tt := newTaskTable()
	ctx := context.Background()

	// Reset moved the session to generation 5 and an upload started on it
	// before Reset got to cancel the pending work.
	stale := tt.start(ctx, "s", 4, taskTimer)
	read := tt.start(ctx, "s", 5, taskRead)
	assert.ErrorIs(t, stale.Err(), context.Canceled)

	assert.False(t, tt.cancelBefore("s", 5))
	assert.NoError(t, read.Err())
	assert.True(t, tt.has("s", 5))

	// Without the interleaving, the older task is aborted.
	other := tt.start(ctx, "o", 4, taskTimer)
	assert.True(t, tt.cancelBefore("o", 5))
	assert.ErrorIs(t, other.Err(), context.Canceled)
	assert.False(t, tt.has("o", 4))
	assert.False(t, tt.cancelBefore("missing", 1))
}

func TestTaskTable_CancelIsUnconditional(t *testing.T) {
	tt := newTaskTable()
	task := tt.start(context.Background(), "s", 9, taskRead)

	assert.True(t, tt.cancel("s"))
	assert.ErrorIs(t, task.Err(), context.Canceled)
	assert.False(t, tt.cancel("s"))
}
