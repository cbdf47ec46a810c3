// Package settle computes the authoritative payout for a won session.
// The client-reported outcome and payout hint are never trusted as-is.
package settle

import (
	"math"
	"math/rand/v2"
	"sync"
)

const (
	defaultMinMult = 1.2
	defaultMaxMult = 2.9
)

// Policy draws a win multiplier uniformly from [MinMult, MaxMult) and pays
// ceil(stake * multiplier). A loss always pays zero.
type Policy struct {
	MinMult float64
	MaxMult float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPolicy() *Policy {
	return &Policy{
		MinMult: defaultMinMult,
		MaxMult: defaultMaxMult,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewSeededPolicy pins the multiplier stream, for tests.
func NewSeededPolicy(seed uint64) *Policy {
	return &Policy{
		MinMult: defaultMinMult,
		MaxMult: defaultMaxMult,
		rnd:     rand.New(rand.NewPCG(seed, seed)),
	}
}

// Payout returns the authoritative payout for the outcome.
func (p *Policy) Payout(stake int64, won bool) int64 {
	if !won || stake <= 0 {
		return 0
	}

	p.mu.Lock()
	mult := p.MinMult + p.rnd.Float64()*(p.MaxMult-p.MinMult)
	p.mu.Unlock()

	return int64(math.Ceil(float64(stake) * mult))
}

// Bounds returns the inclusive payout range a won stake can produce.
func (p *Policy) Bounds(stake int64) (int64, int64) {
	lo := int64(math.Ceil(float64(stake) * p.MinMult))
	hi := int64(math.Ceil(float64(stake) * p.MaxMult))

	return lo, hi
}

// HintInBounds reports whether a client payout hint is plausible for the
// stake. A zero hint means none was supplied and always passes.
// Out-of-bounds hints are logged by the caller as suspect; they are never
// used for settlement either way.
func (p *Policy) HintInBounds(stake, hint int64, won bool) bool {
	if hint == 0 {
		return true
	}
	if !won {
		return false
	}

	lo, hi := p.Bounds(stake)

	return hint >= lo && hint <= hi
}

// OutcomeValidator is the seam for server-side outcome verification. The
// current deployment has no replay or committed seed to check against, so
// the default implementation trusts the reported outcome.
type OutcomeValidator interface {
	Validate(sessionID, gameID string, won bool) error
}

// TrustClient accepts every reported outcome.
type TrustClient struct{}

func (TrustClient) Validate(string, string, bool) error { return nil }
