package index

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/store"
)

func TestWriteGuard_SerializesSections(t *testing.T) {
	g := newWriteGuard(nil, store.NewMetadataStore())

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.run(func(*writeAccess) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestWriteGuard_ErrorDoesNotPoison(t *testing.T) {
	g := newWriteGuard(nil, store.NewMetadataStore())

	err := g.run(func(*writeAccess) error { return errors.New("boom") })

	assert.EqualError(t, err, "boom")
	assert.False(t, g.isPoisoned())
	assert.NoError(t, g.run(func(*writeAccess) error { return nil }))
}

func TestWriteGuard_PanicPoisons(t *testing.T) {
	// Given: a section that panics
	g := newWriteGuard(nil, store.NewMetadataStore())
	assert.PanicsWithValue(t, "half done", func() {
		_ = g.run(func(*writeAccess) error { panic("half done") })
	})

	// Then: the guard is poisoned and later sections never run
	require.True(t, g.isPoisoned())
	ran := false
	func() {
		defer func() {
			err, ok := recover().(*lderrors.Error)
			require.True(t, ok)
			assert.Equal(t, lderrors.ErrCodeIndexPoisoned, err.Code)
		}()
		_ = g.run(func(*writeAccess) error {
			ran = true
			return nil
		})
	}()
	assert.False(t, ran)

	// And: shutdown still runs
	called := false
	require.NoError(t, g.shutdown(func(*writeAccess) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
