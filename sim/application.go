package sim

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// ModuleKind classifies an application module.
type ModuleKind string

const (
	// ModuleSource is a pure generator; population deploys its emitters.
	ModuleSource ModuleKind = "source"
	// ModuleOperator consumes and forwards messages; placement deploys it.
	ModuleOperator ModuleKind = "operator"
	// ModuleSink only consumes; population deploys it.
	ModuleSink ModuleKind = "sink"
)

// ValidModuleKinds is the set of recognized module kinds.
var ValidModuleKinds = map[ModuleKind]bool{ModuleSource: true, ModuleOperator: true, ModuleSink: true}

// Module is one logical component of an application.
type Module struct {
	Name string
	Kind ModuleKind
	RAM  float64 // memory demand, checked by placement policies that care
}

// ServiceKind distinguishes message-triggered services from self-timed generators.
type ServiceKind string

const (
	// ServiceConsumer runs when In arrives and may emit Out.
	ServiceConsumer ServiceKind = "consumer"
	// ServiceGenerator emits Out on its own schedule, once per hosting node.
	ServiceGenerator ServiceKind = "generator"
)

// Service describes what a module does with a message.
type Service struct {
	Kind ServiceKind
	In   string // input message name (consumer services)
	Out  string // output message name, "" for none

	// Selectivity is the probability that handling In emits Out. Zero means 1.
	Selectivity float64

	// Destinations broadcasts Out to each listed module, each gated by an
	// independent draw against the matching Probabilities entry.
	Destinations  []string
	Probabilities []float64

	// Distribution paces generator services.
	Distribution Distribution
}

func (s Service) selectivity() float64 {
	if s.Selectivity == 0 {
		return 1
	}
	return s.Selectivity
}

// Application is a DAG of modules connected by messages. Modules, messages and
// services refer to each other by name only.
type Application struct {
	Name     string
	modules  map[string]Module
	order    []string
	messages map[string]Message
	services map[string][]Service
}

// NewApplication creates an empty application.
func NewApplication(name string) *Application {
	return &Application{
		Name:     name,
		modules:  make(map[string]Module),
		messages: make(map[string]Message),
		services: make(map[string][]Service),
	}
}

// AddModule declares a module. Names must be unique.
func (a *Application) AddModule(name string, kind ModuleKind) error {
	return a.AddModuleSpec(Module{Name: name, Kind: kind})
}

// AddModuleSpec declares a module with all of its attributes.
func (a *Application) AddModuleSpec(m Module) error {
	if m.Name == "" {
		return fmt.Errorf("app %s: module name must not be empty", a.Name)
	}
	if !ValidModuleKinds[m.Kind] {
		return fmt.Errorf("app %s: module %s has unknown kind %q", a.Name, m.Name, m.Kind)
	}
	if _, dup := a.modules[m.Name]; dup {
		return fmt.Errorf("app %s: duplicate module %s", a.Name, m.Name)
	}
	a.modules[m.Name] = m
	a.order = append(a.order, m.Name)
	return nil
}

// AddMessage declares a message between two declared modules.
func (a *Application) AddMessage(m Message) error {
	if m.Name == "" {
		return fmt.Errorf("app %s: message name must not be empty", a.Name)
	}
	if _, dup := a.messages[m.Name]; dup {
		return fmt.Errorf("app %s: duplicate message %s", a.Name, m.Name)
	}
	if _, ok := a.modules[m.Src]; !ok {
		return fmt.Errorf("app %s: message %s has unknown source module %q", a.Name, m.Name, m.Src)
	}
	if _, ok := a.modules[m.Dst]; !ok {
		return fmt.Errorf("app %s: message %s has unknown destination module %q", a.Name, m.Name, m.Dst)
	}
	if m.Size < 0 || m.Instructions < 0 {
		return fmt.Errorf("app %s: message %s must have non-negative size and instructions", a.Name, m.Name)
	}
	a.messages[m.Name] = m
	return nil
}

// AddService attaches a service to a declared module.
func (a *Application) AddService(module string, svc Service) error {
	if _, ok := a.modules[module]; !ok {
		return fmt.Errorf("app %s: service on unknown module %q", a.Name, module)
	}
	if svc.Kind == "" {
		svc.Kind = ServiceConsumer
	}
	switch svc.Kind {
	case ServiceConsumer:
		if _, ok := a.messages[svc.In]; !ok {
			return fmt.Errorf("app %s: module %s consumes unknown message %q", a.Name, module, svc.In)
		}
	case ServiceGenerator:
		if svc.Distribution == nil {
			return fmt.Errorf("app %s: generator on module %s needs a distribution", a.Name, module)
		}
		if svc.Out == "" {
			return fmt.Errorf("app %s: generator on module %s needs an output message", a.Name, module)
		}
	default:
		return fmt.Errorf("app %s: module %s has unknown service kind %q", a.Name, module, svc.Kind)
	}
	if svc.Out != "" {
		if _, ok := a.messages[svc.Out]; !ok {
			return fmt.Errorf("app %s: module %s emits unknown message %q", a.Name, module, svc.Out)
		}
	}
	if svc.Selectivity < 0 || svc.Selectivity > 1 {
		return fmt.Errorf("app %s: module %s selectivity must be in [0,1], got %v", a.Name, module, svc.Selectivity)
	}
	if len(svc.Destinations) != len(svc.Probabilities) {
		return fmt.Errorf("app %s: module %s has %d destinations but %d probabilities",
			a.Name, module, len(svc.Destinations), len(svc.Probabilities))
	}
	for i, dst := range svc.Destinations {
		if _, ok := a.modules[dst]; !ok {
			return fmt.Errorf("app %s: module %s broadcasts to unknown module %q", a.Name, module, dst)
		}
		if p := svc.Probabilities[i]; p < 0 || p > 1 {
			return fmt.Errorf("app %s: module %s probability for %s must be in [0,1], got %v", a.Name, module, dst, p)
		}
	}
	svc.Destinations = slices.Clone(svc.Destinations)
	svc.Probabilities = slices.Clone(svc.Probabilities)
	a.services[module] = append(a.services[module], svc)
	return nil
}

// Module returns the named module.
func (a *Application) Module(name string) (Module, bool) {
	m, ok := a.modules[name]
	return m, ok
}

// Modules returns module names in declaration order.
func (a *Application) Modules() []string { return slices.Clone(a.order) }

// ModulesOfKind returns, in declaration order, the modules of the given kind.
func (a *Application) ModulesOfKind(kind ModuleKind) []string {
	var out []string
	for _, name := range a.order {
		if a.modules[name].Kind == kind {
			out = append(out, name)
		}
	}
	return out
}

// Message returns the named message template.
func (a *Application) Message(name string) (Message, bool) {
	m, ok := a.messages[name]
	return m, ok
}

// Messages returns message names in ascending order.
func (a *Application) Messages() []string {
	names := make([]string, 0, len(a.messages))
	for n := range a.messages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Services returns the services declared on a module.
func (a *Application) Services(module string) []Service {
	return slices.Clone(a.services[module])
}

// Inputs returns the names of messages a module consumes.
func (a *Application) Inputs(module string) []string {
	var out []string
	for _, svc := range a.services[module] {
		if svc.Kind == ServiceConsumer && !slices.Contains(out, svc.In) {
			out = append(out, svc.In)
		}
	}
	return out
}

// SourceMessages returns, in ascending name order, the messages emitted by pure source modules.
func (a *Application) SourceMessages() []Message {
	var out []Message
	for _, name := range a.Messages() {
		m := a.messages[name]
		if a.modules[m.Src].Kind == ModuleSource {
			out = append(out, m)
		}
	}
	return out
}
