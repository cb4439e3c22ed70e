package audit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
	"github.com/signalsfoundry/netdesign/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newWorkspace(t *testing.T) (*state.Workspace, int64) {
	t.Helper()
	d := core.New()
	a, err := d.AddNode("a", model.Point{})
	require.NoError(t, err)
	b, err := d.AddNode("b", model.Point{})
	require.NoError(t, err)
	l, err := d.AddLink(a, b, 10, 1, core.DefaultPropagationSpeedKmPerSec, nil)
	require.NoError(t, err)
	return state.NewWorkspace(d, nil), l.ID()
}

func TestRunOnceSkipsUnchangedDesign(t *testing.T) {
	ws, linkID := newWorkspace(t)
	a := NewAuditor(ws, time.Minute, nil)
	ctx := context.Background()

	first := a.RunOnce(ctx)
	require.NoError(t, first.Err)
	assert.False(t, first.Skipped)

	second := a.RunOnce(ctx)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Epoch, second.Epoch)

	require.NoError(t, ws.Update(ctx, "fail", func(d *core.Design) error {
		return d.LinkByID(linkID).SetFailureState(false)
	}))
	third := a.RunOnce(ctx)
	require.NoError(t, third.Err)
	assert.False(t, third.Skipped)
	assert.Greater(t, third.Epoch, first.Epoch)
	assert.Equal(t, third, a.Last())
}

func TestRunNotifiesListenersUntilCancelled(t *testing.T) {
	ws, _ := newWorkspace(t)
	a := NewAuditor(ws, 2*time.Millisecond, nil)

	var audits atomic.Int32
	a.AddListener(func(r Result) {
		assert.NoError(t, r.Err)
		audits.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
	}()

	require.Eventually(t, func() bool { return audits.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestRunDisabled(t *testing.T) {
	ws, _ := newWorkspace(t)
	a := NewAuditor(ws, 0, nil)
	a.Run(context.Background())
	assert.Zero(t, a.Last().Epoch)
}
