package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/policy"
	"github.com/fogsim/fogsim/sim/trace"
)

// Build validates the scenario and returns a simulator with every application,
// failure generator and monitor deployed. Allocation happens on the first Run.
func Build(sc *Scenario) (*sim.Simulator, error) {
	topo, err := sc.Check()
	if err != nil {
		return nil, err
	}
	s := sim.NewSimulator(topo, sim.Config{
		Seed:         sc.Seed,
		TraceLevel:   trace.TraceLevel(sc.Trace),
		NodeCapacity: sc.NodeCapacity,
		LinkCapacity: sc.LinkCapacity,
	})

	for _, a := range sc.Applications {
		app, err := a.Build()
		if err != nil {
			return nil, err
		}
		placement, err := policy.NewPlacement(a.Placement)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
		population, err := policy.NewPopulation(a.Population)
		if err != nil {
			return nil, fmt.Errorf("app %s: population: %w", a.Name, err)
		}
		if err := s.DeployApp(app, placement, population, policy.NewSelection(a.Selection)); err != nil {
			return nil, err
		}
		logrus.Infof("Deployed application %s (selection=%s, placement=%s)", a.Name, selectionName(a.Selection), a.Placement.Kind)
	}

	if sc.Failures != nil {
		dist, err := sc.Failures.Distribution.Build()
		if err != nil {
			return nil, fmt.Errorf("failures: %w", err)
		}
		s.DeployNodeFailureGenerator(sc.Failures.Nodes, dist)
	}
	for _, m := range sc.Monitors {
		dist, err := m.Every.Build()
		if err != nil {
			return nil, fmt.Errorf("monitor %s: %w", m.Kind, err)
		}
		s.DeployMonitor(m.Kind, monitorFunc(m.Kind), dist)
	}
	return s, nil
}

func selectionName(name string) string {
	if name == "" {
		return policy.SelectionShortestPath
	}
	return name
}

func monitorFunc(kind string) func(*sim.Simulator) {
	switch kind {
	case MonitorAlloc:
		return logAllocation
	case MonitorNetwork:
		return logNetwork
	default:
		return logUsage
	}
}

func logAllocation(s *sim.Simulator) {
	alloc := s.AllocEntities()
	for _, node := range s.Topology().Nodes() {
		if entities, ok := alloc[node]; ok {
			logrus.Infof("[%.3f] node %d hosts %v", s.Now(), node, entities)
		}
	}
}

func logNetwork(s *sim.Simulator) {
	m := s.Metrics
	logrus.Infof("[%.3f] emitted=%d delivered=%d dropped=%d lost=%d rerouted=%d in-network=%d",
		s.Now(), m.Emitted, m.Delivered, m.Dropped, m.Lost, m.Rerouted, s.InNetwork())
}

func logUsage(s *sim.Simulator) {
	r := s.Report()
	for _, n := range r.Nodes {
		logrus.Infof("[%.3f] node %d usage=%.3f power=%.3f", s.Now(), n.Node, n.Usage, n.Power)
	}
	for _, l := range r.Links {
		logrus.Infof("[%.3f] link %s usage=%.3f transmissions=%d", s.Now(), l.Link, l.Usage, l.Transmissions)
	}
}
