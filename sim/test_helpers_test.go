package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fogsim/fogsim/sim/topology"
)

// hopSelection picks the nearest live candidate by hop count, lowest process id on ties.
// sim/policy depends on sim, so kernel tests carry their own minimal selection.
type hopSelection struct{}

func (hopSelection) GetPaths(ctx PathContext, env Envelope, src topology.NodeID, candidates []Endpoint) []Route {
	var best *Route
	for _, c := range candidates {
		path, err := ctx.Topology().ShortestPath(src, c.Node)
		if err != nil {
			continue
		}
		if best == nil || len(path) < len(best.Path) {
			best = &Route{Path: path, Process: c.Process}
		}
	}
	if best == nil {
		return nil
	}
	return []Route{*best}
}

// allocFunc adapts a function to Placement and Population.
type allocFunc func(s *Simulator, app string) error

func (f allocFunc) InitialAllocation(s *Simulator, app string) error { return f(s, app) }

// testLine builds src(1) - mid(2) - dst(3) with BW 10 and PR 1 on both links.
func testLine(t *testing.T) *topology.Topology {
	t.Helper()
	topo := topology.New()
	topo.AddNode(topology.Node{ID: 1, IPT: 1})
	topo.AddNode(topology.Node{ID: 2, IPT: 2, WattIdle: 10, WattLoad: 5})
	topo.AddNode(topology.Node{ID: 3, IPT: 1})
	require.NoError(t, topo.AddLink(1, 2, topology.Link{BW: 10, PR: 1}))
	require.NoError(t, topo.AddLink(2, 3, topology.Link{BW: 10, PR: 1}))
	return topo
}

// testPipeline declares src -(M1)-> op -(M2)-> snk.
// M1 costs 20 instructions and 100 bytes; M2 costs nothing and 50 bytes.
func testPipeline(t *testing.T) *Application {
	t.Helper()
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("op", ModuleOperator))
	require.NoError(t, app.AddModule("snk", ModuleSink))
	require.NoError(t, app.AddMessage(Message{Name: "M1", Src: "src", Dst: "op", Instructions: 20, Size: 100}))
	require.NoError(t, app.AddMessage(Message{Name: "M2", Src: "op", Dst: "snk", Size: 50}))
	require.NoError(t, app.AddService("op", Service{In: "M1", Out: "M2"}))
	return app
}

// deployPipeline places src on 1, op on 2 and snk on 3, emitting M1 every period from t=0.
func deployPipeline(t *testing.T, s *Simulator, period float64) {
	t.Helper()
	app := testPipeline(t)
	population := allocFunc(func(s *Simulator, name string) error {
		m1, _ := app.Message("M1")
		if _, err := s.DeploySource(name, 1, m1, &DeterministicStartPoint{Start: 0, Time: period}); err != nil {
			return err
		}
		_, err := s.DeploySink(name, 3, "snk")
		return err
	})
	placement := allocFunc(func(s *Simulator, name string) error {
		_, err := s.DeployModule(name, "op", nil, []topology.NodeID{2})
		return err
	})
	require.NoError(t, s.DeployApp(app, placement, population, hopSelection{}))
}

// everySelection returns a hop-count shortest route to every reachable candidate.
type everySelection struct{}

func (everySelection) GetPaths(ctx PathContext, env Envelope, src topology.NodeID, candidates []Endpoint) []Route {
	var routes []Route
	for _, c := range candidates {
		if path, err := ctx.Topology().ShortestPath(src, c.Node); err == nil {
			routes = append(routes, Route{Path: path, Process: c.Process})
		}
	}
	return routes
}
