package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/iti/rngstream"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce identical event logs.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemSelection is the RNG subsystem for randomized selection policies.
	SubsystemSelection = "selection"
)

// SubsystemProcess returns the subsystem name for the timer of process N.
func SubsystemProcess(id ProcessID) string {
	return fmt.Sprintf("process_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
	streams    map[string]*rngstream.RngStream
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
		streams:    make(map[string]*rngstream.RngStream),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Stream returns the named L'Ecuyer stream, creating it on first use.
// The stream is reseeded from masterSeed XOR fnv1a64(name), so its draws
// depend only on the simulation key and the name.
func (p *PartitionedRNG) Stream(name string) *rngstream.RngStream {
	if st, ok := p.streams[name]; ok {
		return st
	}
	st := rngstream.New(name)
	if !st.SetSeed(streamSeed(int64(p.key) ^ fnv1a64(name))) {
		panic(fmt.Sprintf("invalid rngstream seed for %q", name))
	}
	p.streams[name] = st
	return st
}

// Moduli of the two MRG32k3a components. A stream seed is six words, the
// first three below streamM1 and the last three below streamM2, none zero.
const (
	streamM1 = 4294967087
	streamM2 = 4294944443
)

// streamSeed expands a 64-bit seed into a valid six-word rngstream seed.
func streamSeed(seed int64) []uint64 {
	src := rand.New(rand.NewSource(seed))
	words := make([]uint64, 6)
	for i := range words {
		m := int64(streamM1)
		if i >= 3 {
			m = streamM2
		}
		words[i] = uint64(src.Int63n(m-1)) + 1
	}
	return words
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
