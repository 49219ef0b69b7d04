// Copyright 2020 Nelson Elhage
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"errors"
	"fmt"
	"math/rand"
)

// DefaultDecoyRate is the chance, per emitted frame, of emitting a decoy
// instead of the next character in direct mode.
const DefaultDecoyRate = 0.35

// Policy decides, frame by frame, whether the direct-mode encoder
// emits a decoy.
type Policy interface {
	ShouldEmitDecoy(rng *rand.Rand) bool
}

type PolicyFunc func(rng *rand.Rand) bool

func (f PolicyFunc) ShouldEmitDecoy(rng *rand.Rand) bool { return f(rng) }

var ErrDecoyRate = errors.New("decoy rate must be in [0, 1)")

// CheckDecoyRate rejects rates that would never let a real character
// through.
func CheckDecoyRate(rate float64) error {
	if rate < 0 || rate >= 1 {
		return fmt.Errorf("%v: %w", rate, ErrDecoyRate)
	}
	return nil
}

// RandomPolicy emits a decoy with probability Rate.
type RandomPolicy struct {
	Rate float64
}

func (p RandomPolicy) ShouldEmitDecoy(rng *rand.Rand) bool {
	return rng.Float64() < p.Rate
}

// NoDecoys always emits the real character.
var NoDecoys Policy = PolicyFunc(func(*rand.Rand) bool { return false })

// AlwaysDecoy never emits a real character. Only useful to test the
// namespace limit.
var AlwaysDecoy Policy = PolicyFunc(func(*rand.Rand) bool { return true })

type sequencePolicy struct {
	decisions []bool
	next      int
}

// Sequence replays a fixed list of decisions, then stops emitting
// decoys once the list runs out.
func Sequence(decisions ...bool) Policy {
	return &sequencePolicy{decisions: decisions}
}

func (p *sequencePolicy) ShouldEmitDecoy(*rand.Rand) bool {
	if p.next >= len(p.decisions) {
		return false
	}
	d := p.decisions[p.next]
	p.next++
	return d
}
