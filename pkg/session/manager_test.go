package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.State
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[sessionID] = state
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	// Initial save
	_ = manager.Save(ctx, id, domain.NewState(id))

	var wg sync.WaitGroup
	concurrentWrites := 10

	// We want to verify that writes are serialized.
	// In a real scenario, Read-Modify-Write without locking would lose updates.
	// Here we just ensure no panics or weird state, but the manager.WithLock is where the value lies.

	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()

			// Just call Save. The Manager must ensure this is safe.
			// The SlowStore simulates IO delay.
			// If locking works, these should happen sequentially (or at least safely).
			err := manager.Save(ctx, id, domain.NewState(id))
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()
}

func TestManager_LoadOrStart(t *testing.T) {
	// Verify atomic creation
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	// Launch 2 routines trying to init same session
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrStart(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	// Should exist and be valid
	state, err := manager.Load(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, id, state.SessionID)
	assert.Equal(t, domain.PhaseAwaitingUpload, state.Phase())
}

func TestManager_UpdateSerializes(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "counter"
	require.NoError(t, manager.Save(ctx, id, domain.NewState(id)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(s *domain.State) (*domain.State, error) {
				next := s.Snapshot()
				next.Enter(domain.AwaitingUpload{}, time.Now())
				return next, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), state.Generation, "no update may be lost")
}

func TestManager_UpdateAbortsOnError(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, "s", domain.NewState("s")))

	_, err := manager.Update(ctx, "s", func(s *domain.State) (*domain.State, error) {
		return nil, domain.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = manager.Update(ctx, "missing", func(s *domain.State) (*domain.State, error) {
		return s, nil
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
