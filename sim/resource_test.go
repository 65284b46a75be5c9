package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogsim/fogsim/sim/topology"
)

// holder acquires r, holds it for hold time units, releases and exits.
// It records grant times and the wake reason it ended with.
type holder struct {
	r       *Resource
	hold    float64
	granted []float64
	closed  bool
	guard   *Guard
}

func (h *holder) Resume(s *Simulator, p *Process, w Wake) Yield {
	switch w.Reason {
	case WakeStart:
		return Acquire(h.r)
	case WakeGranted:
		h.guard = w.Guard
		h.granted = append(h.granted, s.Now())
		return Timeout(h.hold)
	case WakeTimeout:
		h.guard.Release(s)
		return Exit()
	case WakeResourceClosed:
		h.closed = true
		return Exit()
	}
	return Exit()
}

func TestNewResource_InvalidCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { NewResource("r", 0, 0) })
}

func TestResource_MutualExclusionAndFIFO(t *testing.T) {
	// GIVEN three processes contending for a capacity-1 resource
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	hs := []*holder{{r: r, hold: 4}, {r: r, hold: 4}, {r: r, hold: 4}}
	for _, h := range hs {
		s.spawn(KindMonitor, 0, "", "h", h)
	}

	// WHEN the simulation runs
	s.AdvanceTo(1)
	assert.Equal(t, 1, r.Holders())
	assert.Equal(t, 2, r.QueueLen())
	s.AdvanceTo(100)

	// THEN grants are serialized in request order
	assert.Equal(t, []float64{0}, hs[0].granted)
	assert.Equal(t, []float64{4}, hs[1].granted)
	assert.Equal(t, []float64{8}, hs[2].granted)
	assert.Equal(t, 0, r.Holders())
	assert.Equal(t, 3, r.Grants())
}

func TestResource_UsageBounds(t *testing.T) {
	// GIVEN a resource held for 12 of 100 time units
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	for i := 0; i < 3; i++ {
		s.spawn(KindMonitor, 0, "", "h", &holder{r: r, hold: 4})
	}
	s.AdvanceTo(100)

	// THEN usage is the busy fraction and stays within [0, 1]
	assert.InDelta(t, 0.12, r.Usage(100), 1e-12)
	assert.InDelta(t, 12.0, r.HolderTime(100), 1e-12)
	assert.Equal(t, 0.0, NewResource("idle", 1, 0).Usage(100))
}

func TestResource_CapacityTwoOverlaps(t *testing.T) {
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 2, 0)
	hs := []*holder{{r: r, hold: 4}, {r: r, hold: 4}, {r: r, hold: 4}}
	for _, h := range hs {
		s.spawn(KindMonitor, 0, "", "h", h)
	}
	s.AdvanceTo(100)

	assert.Equal(t, []float64{0}, hs[0].granted)
	assert.Equal(t, []float64{0}, hs[1].granted)
	assert.Equal(t, []float64{4}, hs[2].granted)
	// busy from 0 to 8, two holders during [0,4)
	assert.InDelta(t, 0.08, r.Usage(100), 1e-12)
	assert.InDelta(t, 12.0, r.HolderTime(100), 1e-12)
}

func TestResource_ReleaseIsIdempotent(t *testing.T) {
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	h := &holder{r: r, hold: 1}
	s.spawn(KindMonitor, 0, "", "h", h)
	s.AdvanceTo(5)

	h.guard.Release(s)
	h.guard.Release(s)

	assert.Equal(t, 0, r.Holders())
}

func TestResource_SkipsStoppedWaiters(t *testing.T) {
	// GIVEN a holder and two queued waiters, the first of which is stopped
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	first, stopped, last := &holder{r: r, hold: 4}, &holder{r: r, hold: 4}, &holder{r: r, hold: 4}
	s.spawn(KindMonitor, 0, "", "h", first)
	p := s.spawn(KindMonitor, 0, "", "h", stopped)
	s.spawn(KindMonitor, 0, "", "h", last)
	s.AdvanceTo(1)
	s.StopProcess(p.ID)

	// WHEN the holder releases
	s.AdvanceTo(100)

	// THEN the live waiter is served next
	assert.Empty(t, stopped.granted)
	assert.Equal(t, []float64{4}, last.granted)
}

func TestResource_CloseWakesWaiters(t *testing.T) {
	// GIVEN a holder and a waiter
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	a, b := &holder{r: r, hold: 10}, &holder{r: r, hold: 10}
	s.spawn(KindMonitor, 0, "", "h", a)
	s.spawn(KindMonitor, 0, "", "h", b)
	s.AdvanceTo(1)

	// WHEN the resource is closed
	r.Close(s)
	s.AdvanceTo(100)

	// THEN the waiter resumes with ResourceClosed and the holder's release is a no-op
	assert.True(t, b.closed)
	assert.Empty(t, b.granted)
	assert.True(t, r.Closed())
	assert.Equal(t, 0, r.Holders())
	assert.InDelta(t, 1.0/100.0, r.Usage(100), 1e-12)

	// AND acquiring a closed resource fails immediately
	c := &holder{r: r, hold: 1}
	s.spawn(KindMonitor, 0, "", "h", c)
	s.AdvanceTo(101)
	require.True(t, c.closed)
}

func TestStopProcess_ReleasesHeldSlots(t *testing.T) {
	// GIVEN a process holding a slot and one waiting
	s := NewSimulator(topology.New(), Config{})
	r := NewResource("r", 1, 0)
	a, b := &holder{r: r, hold: 50}, &holder{r: r, hold: 1}
	pa := s.spawn(KindMonitor, 0, "", "h", a)
	s.spawn(KindMonitor, 0, "", "h", b)
	s.AdvanceTo(2)

	// WHEN the holder is stopped
	s.StopProcess(pa.ID)
	s.StopProcess(pa.ID)
	s.AdvanceTo(3)

	// THEN its slot passes to the waiter at the stop time
	assert.Equal(t, []float64{2}, b.granted)
}
