package probe

import (
	"math/rand"
	"sort"
	"sync"
)

// Sampler decides, per hook, whether a row should be recorded once the
// tracer has left Discovery
type Sampler interface {
	// Discover registers a module observed during the Discovery step.
	Discover(module string)
	// BeginStep is called at each post_step boundary: the first call
	// finalizes the discovery set into a steady-state ordering, every
	// later call advances the round-robin pointer.
	BeginStep()
	// Should reports whether module should be sampled this step.
	Should(module string) bool
}

// orderedSampler implements "ordered" mode: discover every module in
// step one, then sort by name length ascending and visit one victim
// per subsequent step, round-robin.
type orderedSampler struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	discover  []string
	ordered   []string
	pointer   int
	finalized bool
}

func newOrderedSampler() *orderedSampler {
	return &orderedSampler{seen: map[string]struct{}{}}
}

func (s *orderedSampler) Discover(module string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[module]; ok {
		return
	}
	s.seen[module] = struct{}{}
	s.discover = append(s.discover, module)
}

func (s *orderedSampler) BeginStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finalized {
		ordered := append([]string(nil), s.discover...)
		sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) < len(ordered[j]) })
		s.ordered = ordered
		s.finalized = true
		s.pointer = 0
		return
	}
	if len(s.ordered) > 0 {
		s.pointer = (s.pointer + 1) % len(s.ordered)
	}
}

func (s *orderedSampler) Should(module string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finalized || len(s.ordered) == 0 {
		return false
	}
	return module == s.ordered[s.pointer]
}

// randomSampler implements the "random" mode: an independent Bernoulli
// trial per hook with probability rate
type randomSampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rate float64
}

func newRandomSampler(rate float64) *randomSampler {
	return &randomSampler{rng: rand.New(rand.NewSource(1)), rate: rate}
}

func (s *randomSampler) Discover(string) {}
func (s *randomSampler) BeginStep()      {}

func (s *randomSampler) Should(string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.rate
}

// NewSampler builds a Sampler for the given mode/rate, falling back to
// ordered mode for any mode other than "ordered" or "random". In random
// mode a rate outside (0,1] is clamped to 1.0; ordered mode ignores rate.
func NewSampler(mode string, rate float64) Sampler {
	switch mode {
	case "random":
		if rate <= 0 || rate > 1 {
			rate = 1.0
		}
		return newRandomSampler(rate)
	case "ordered":
		return newOrderedSampler()
	default:
		return newOrderedSampler()
	}
}
