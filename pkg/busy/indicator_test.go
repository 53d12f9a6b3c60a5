package busy

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/insight-dash/pkg/metrics"
)

func TestNewIsInactive(t *testing.T) {
	b := New()
	assert.False(t, b.Active())
	assert.Equal(t, State{}, b.State())
}

func TestAcquireRelease(t *testing.T) {
	b := New()

	g := b.Acquire("Uploading and processing file…")
	assert.Equal(t, State{Active: true, Label: "Uploading and processing file…"}, b.State())

	g.Release()
	assert.False(t, b.Active())
}

func TestReentrantAcquireOverwritesLabel(t *testing.T) {
	b := New()

	first := b.Acquire("first")
	second := b.Acquire("second")
	assert.Equal(t, "second", b.State().Label)
	assert.True(t, b.Active())

	second.Release()
	first.Release()
	assert.False(t, b.Active())
}

func TestGuardRelabel(t *testing.T) {
	b := New()
	g := b.Acquire("Uploading and processing file…")
	g.Relabel("Generating insights and charts…")

	assert.Equal(t, State{Active: true, Label: "Generating insights and charts…"}, b.State())
	g.Release()
	assert.False(t, b.Active())
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	b := New()
	var changes int
	b.Subscribe(func(State) { changes++ })

	g := b.Acquire("x")
	g.Release()
	g.Release()

	assert.Equal(t, 2, changes, "acquire + one release")
}

func TestDeferredReleaseOnErrorAndPanic(t *testing.T) {
	b := New()

	failing := func() error {
		g := b.Acquire("work")
		defer g.Release()
		return errors.New("boom")
	}
	require.Error(t, failing())
	assert.False(t, b.Active())

	panicking := func() {
		g := b.Acquire("work")
		defer g.Release()
		panic("unexpected")
	}
	assert.Panics(t, panicking)
	assert.False(t, b.Active())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	b := New()
	var seen []State
	unsubscribe := b.Subscribe(func(s State) { seen = append(seen, s) })

	g := b.Acquire("a")
	g.Release()
	unsubscribe()
	b.Acquire("ignored").Release()

	require.Len(t, seen, 2)
	assert.Equal(t, State{Active: true, Label: "a"}, seen[0])
	assert.Equal(t, State{Active: false, Label: "a"}, seen[1])
}

func TestObserverMayReadState(t *testing.T) {
	b := New()
	var observed State
	b.Subscribe(func(State) { observed = b.State() })

	b.Acquire("reentrant read")
	assert.Equal(t, "reentrant read", observed.Label)
}

func TestConcurrentAcquireRelease(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := b.Acquire("parallel")
			g.Release()
		}()
	}
	wg.Wait()

	assert.False(t, b.Active())
}

func TestBusyGaugeCountsIndicators(t *testing.T) {
	base := testutil.ToFloat64(metrics.BusyActive)
	a, b := New(), New()

	ga := a.Acquire("Uploading and processing file…")
	a.Acquire("Generating insights and charts…")
	gb := b.Acquire("Generating PDF report…")
	assert.Equal(t, base+2, testutil.ToFloat64(metrics.BusyActive))

	ga.Release()
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.BusyActive))

	ga.Release()
	a.Release()
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.BusyActive))

	gb.Release()
	assert.Equal(t, base, testutil.ToFloat64(metrics.BusyActive))
}
