package policy

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/topology"
)

// NodeSelector names nodes explicitly, by attribute, or both.
type NodeSelector struct {
	Nodes []topology.NodeID
	Key   string // attribute to match; empty disables attribute matching
	Value string
}

// Resolve returns the live selected nodes in ascending order without duplicates.
func (n NodeSelector) Resolve(topo *topology.Topology) []topology.NodeID {
	var out []topology.NodeID
	for _, id := range topo.Nodes() {
		if slices.Contains(n.Nodes, id) {
			out = append(out, id)
			continue
		}
		if n.Key != "" {
			if node, _ := topo.Node(id); node.Attr(n.Key) == n.Value {
				out = append(out, id)
			}
		}
	}
	return out
}

// SourceRule deploys Number emitters of Message on every selected node.
type SourceRule struct {
	Message      string
	Where        NodeSelector
	Number       int // 0 means 1
	Distribution sim.DistributionSpec
}

// SinkRule deploys Number instances of sink Module on every selected node.
type SinkRule struct {
	Module string
	Where  NodeSelector
	Number int // 0 means 1
}

// StaticPopulation assigns sources and sinks to nodes once, at the start of
// the simulation. With an activation distribution it periodically redeploys
// the rules onto selected nodes that have none of them left.
type StaticPopulation struct {
	Sources []SourceRule
	Sinks   []SinkRule
	Every   sim.Distribution

	apps []string
}

func (p *StaticPopulation) Name() string { return "static-population" }

func (p *StaticPopulation) Activation() sim.Distribution { return p.Every }

func (p *StaticPopulation) InitialAllocation(s *sim.Simulator, app string) error {
	a, ok := s.Application(app)
	if !ok {
		return fmt.Errorf("population: application %s is not deployed", app)
	}
	p.apps = append(p.apps, app)
	for _, rule := range p.Sinks {
		if err := p.deploySinks(s, a, rule, false); err != nil {
			return err
		}
	}
	for _, rule := range p.Sources {
		if err := p.deploySources(s, a, rule, false); err != nil {
			return err
		}
	}
	return nil
}

// Run tops up selected nodes, such as nodes added since the start, that host none of a rule's entities.
func (p *StaticPopulation) Run(s *sim.Simulator) {
	for _, app := range p.apps {
		a, ok := s.Application(app)
		if !ok {
			continue
		}
		for _, rule := range p.Sinks {
			if err := p.deploySinks(s, a, rule, true); err != nil {
				logrus.Warnf("[%.3f] population of %s: %v", s.Now(), app, err)
			}
		}
		for _, rule := range p.Sources {
			if err := p.deploySources(s, a, rule, true); err != nil {
				logrus.Warnf("[%.3f] population of %s: %v", s.Now(), app, err)
			}
		}
	}
}

func (p *StaticPopulation) deploySinks(s *sim.Simulator, a *sim.Application, rule SinkRule, missingOnly bool) error {
	m, ok := a.Module(rule.Module)
	if !ok {
		return fmt.Errorf("population: app %s has no module %q", a.Name, rule.Module)
	}
	if m.Kind != sim.ModuleSink {
		return fmt.Errorf("population: module %s of app %s is not a sink", rule.Module, a.Name)
	}
	for _, node := range rule.Where.Resolve(s.Topology()) {
		if missingOnly {
			if _, hosted := s.ProcessOnNode(node, a.Name, rule.Module); hosted {
				continue
			}
		}
		for i := 0; i < max(rule.Number, 1); i++ {
			if _, err := s.DeploySink(a.Name, node, rule.Module); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *StaticPopulation) deploySources(s *sim.Simulator, a *sim.Application, rule SourceRule, missingOnly bool) error {
	msg, ok := a.Message(rule.Message)
	if !ok {
		return fmt.Errorf("population: app %s has no message %q", a.Name, rule.Message)
	}
	if !slices.ContainsFunc(a.SourceMessages(), func(m sim.Message) bool { return m.Name == msg.Name }) {
		return fmt.Errorf("population: message %s of app %s is not emitted by a source module", msg.Name, a.Name)
	}
	for _, node := range rule.Where.Resolve(s.Topology()) {
		if missingOnly && hostsSource(s, node, a.Name, msg.Name) {
			continue
		}
		for i := 0; i < max(rule.Number, 1); i++ {
			dist, err := rule.Distribution.Build()
			if err != nil {
				return fmt.Errorf("population: source of %s: %w", msg.Name, err)
			}
			if _, err := s.DeploySource(a.Name, node, msg, dist); err != nil {
				return err
			}
		}
	}
	return nil
}

func hostsSource(s *sim.Simulator, node topology.NodeID, app, message string) bool {
	for _, id := range s.ProcessesOnNode(node) {
		if info, ok := s.SourceInfo(id); ok && info.App == app && info.Message == message {
			return true
		}
	}
	return false
}
