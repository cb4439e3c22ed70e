package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/netdesign/core"
)

// TestReadersWritersAndAlgorithmsConcurrently runs readers, direct updates
// and algorithm runs side by side to verify the workspace stays race-free
// and consistent.
func TestReadersWritersAndAlgorithmsConcurrently(t *testing.T) {
	w, _ := newTestWorkspace(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var reads, updates, applied atomic.Int64

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				s := w.Summary()
				assert.Equal(t, 3, s.Nodes)
				snap := w.Snapshot()
				assert.Equal(t, 3, snap.NumberOfNodes())
				reads.Add(1)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		up := false
		for ctx.Err() == nil {
			err := w.Update(ctx, "toggle", func(d *core.Design) error {
				return d.Links(nil)[0].SetFailureState(up)
			})
			assert.NoError(t, err)
			up = !up
			updates.Add(1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			_, err := w.RunAlgorithm(ctx, "rescale", func(d *core.Design) (string, error) {
				for _, dem := range d.Demands(nil) {
					if err := dem.SetOfferedTraffic(dem.OfferedTraffic() + 1); err != nil {
						return "", err
					}
				}
				return "rescaled", nil
			})
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, ErrConcurrentUpdate), errors.Is(err, context.DeadlineExceeded):
			default:
				t.Errorf("unexpected algorithm error: %v", err)
			}
		}
	}()

	wg.Wait()
	require.NoError(t, w.CheckConsistency(context.Background()))
	assert.Positive(t, reads.Load())
	assert.Positive(t, updates.Load())
	t.Logf("reads=%d updates=%d applied=%d", reads.Load(), updates.Load(), applied.Load())
}
