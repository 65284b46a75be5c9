package policy

import (
	"fmt"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/topology"
)

// PlacementConfig is the configuration form of a placement policy.
type PlacementConfig struct {
	Kind string `yaml:"kind"`

	// static
	Allocations map[string][]topology.NodeID `yaml:"allocations,omitempty"`

	// attribute
	Key     string   `yaml:"key,omitempty"`
	Value   string   `yaml:"value,omitempty"`
	Modules []string `yaml:"modules,omitempty"`

	// cloud: optional redeployment period
	Every *sim.DistributionSpec `yaml:"every,omitempty"`
}

// Validate checks the kind and the fields it requires.
func (c PlacementConfig) Validate() error {
	if !ValidPlacements[c.Kind] {
		return fmt.Errorf("unknown placement %q; valid placements: [static, cloud, attribute, none]", c.Kind)
	}
	switch c.Kind {
	case PlacementStatic:
		if len(c.Allocations) == 0 {
			return fmt.Errorf("static placement needs at least one allocation")
		}
	case PlacementAttribute:
		if c.Key == "" {
			return fmt.Errorf("attribute placement needs a key")
		}
	}
	if c.Every != nil {
		if c.Kind != PlacementCloud {
			return fmt.Errorf("%s placement does not run periodically", c.Kind)
		}
		if err := c.Every.Validate(); err != nil {
			return fmt.Errorf("cloud placement activation: %w", err)
		}
	}
	return nil
}

// NewPlacement creates a placement policy from its configuration.
func NewPlacement(cfg PlacementConfig) (sim.Placement, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case PlacementStatic:
		return &StaticPlacement{Allocations: cfg.Allocations}, nil
	case PlacementCloud:
		p := &CloudPlacement{}
		if cfg.Every != nil {
			every, err := cfg.Every.Build()
			if err != nil {
				return nil, err
			}
			p.Every = every
		}
		return p, nil
	case PlacementAttribute:
		return &AttributePlacement{Key: cfg.Key, Value: cfg.Value, Modules: cfg.Modules}, nil
	default:
		return NoPlacement{}, nil
	}
}

// SourceConfig is the configuration form of a SourceRule.
type SourceConfig struct {
	Message      string               `yaml:"message"`
	Nodes        []topology.NodeID    `yaml:"nodes,omitempty"`
	Key          string               `yaml:"key,omitempty"`
	Value        string               `yaml:"value,omitempty"`
	Number       int                  `yaml:"number,omitempty"`
	Distribution sim.DistributionSpec `yaml:"distribution"`
}

// SinkConfig is the configuration form of a SinkRule.
type SinkConfig struct {
	Module string            `yaml:"module"`
	Nodes  []topology.NodeID `yaml:"nodes,omitempty"`
	Key    string            `yaml:"key,omitempty"`
	Value  string            `yaml:"value,omitempty"`
	Number int               `yaml:"number,omitempty"`
}

// PopulationConfig is the configuration form of a StaticPopulation.
type PopulationConfig struct {
	Sources []SourceConfig        `yaml:"sources,omitempty"`
	Sinks   []SinkConfig          `yaml:"sinks,omitempty"`
	Every   *sim.DistributionSpec `yaml:"every,omitempty"`
}

// Validate checks every rule selects something and every distribution is valid.
func (c PopulationConfig) Validate() error {
	for i, src := range c.Sources {
		if src.Message == "" {
			return fmt.Errorf("sources[%d]: message is required", i)
		}
		if len(src.Nodes) == 0 && src.Key == "" {
			return fmt.Errorf("sources[%d]: nodes or key is required", i)
		}
		if src.Number < 0 {
			return fmt.Errorf("sources[%d]: number must be >= 0, got %d", i, src.Number)
		}
		if err := src.Distribution.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	for i, snk := range c.Sinks {
		if snk.Module == "" {
			return fmt.Errorf("sinks[%d]: module is required", i)
		}
		if len(snk.Nodes) == 0 && snk.Key == "" {
			return fmt.Errorf("sinks[%d]: nodes or key is required", i)
		}
		if snk.Number < 0 {
			return fmt.Errorf("sinks[%d]: number must be >= 0, got %d", i, snk.Number)
		}
	}
	if c.Every != nil {
		if err := c.Every.Validate(); err != nil {
			return fmt.Errorf("population activation: %w", err)
		}
	}
	return nil
}

// NewPopulation creates a StaticPopulation from its configuration.
func NewPopulation(cfg PopulationConfig) (*StaticPopulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &StaticPopulation{}
	for _, src := range cfg.Sources {
		p.Sources = append(p.Sources, SourceRule{
			Message:      src.Message,
			Where:        NodeSelector{Nodes: src.Nodes, Key: src.Key, Value: src.Value},
			Number:       src.Number,
			Distribution: src.Distribution,
		})
	}
	for _, snk := range cfg.Sinks {
		p.Sinks = append(p.Sinks, SinkRule{
			Module: snk.Module,
			Where:  NodeSelector{Nodes: snk.Nodes, Key: snk.Key, Value: snk.Value},
			Number: snk.Number,
		})
	}
	if cfg.Every != nil {
		every, err := cfg.Every.Build()
		if err != nil {
			return nil, err
		}
		p.Every = every
	}
	return p, nil
}
