// Package voice maps speakers to synthesis voices.
package voice

import (
	"fmt"
	"math/rand/v2"

	"github.com/apresai/panelcast/internal/brief"
)

// Pools holds the voice ids available to each gender.
type Pools struct {
	Male   []string
	Female []string
}

func (p Pools) forGender(g brief.Gender) []string {
	if g == brief.Female {
		return p.Female
	}
	return p.Male
}

// Assignment is the result of assigning voices to a cast.
type Assignment struct {
	// Voices maps first-name key to voice id.
	Voices map[string]string
	// Lines holds one "<Name> → Voice ID: <id>" entry per speaker, in input order.
	Lines []string
}

// Lookup resolves a script speaker label to its voice id.
func (a Assignment) Lookup(label string) (string, bool) {
	id, ok := a.Voices[brief.FirstNameKey(label)]
	return id, ok
}

// Assigner picks voices without reuse until a gender pool runs out.
type Assigner struct {
	pools Pools
	rng   *rand.Rand
}

// NewAssigner creates an Assigner. A nil rng uses the global source.
func NewAssigner(pools Pools, rng *rand.Rand) *Assigner {
	return &Assigner{pools: pools, rng: rng}
}

func (a *Assigner) intN(n int) int {
	if a.rng != nil {
		return a.rng.IntN(n)
	}
	return rand.IntN(n)
}

// Assign gives every speaker a voice. It never fails: once a gender's pool
// is exhausted, voices from that pool are reused. Speakers sharing a first
// name share a key, so the later speaker's voice wins.
func (a *Assigner) Assign(speakers []brief.Speaker) Assignment {
	out := Assignment{
		Voices: make(map[string]string, len(speakers)),
		Lines:  make([]string, 0, len(speakers)),
	}
	used := make(map[string]bool)

	for _, sp := range speakers {
		pool := a.pools.forGender(sp.Gender)
		if len(pool) == 0 {
			continue
		}

		var available []string
		for _, id := range pool {
			if !used[id] {
				available = append(available, id)
			}
		}

		var chosen string
		if len(available) > 0 {
			chosen = available[a.intN(len(available))]
			used[chosen] = true
		} else {
			chosen = pool[a.intN(len(pool))]
		}

		out.Voices[sp.FirstNameKey()] = chosen
		out.Lines = append(out.Lines, fmt.Sprintf("%s → Voice ID: %s", sp.Name, chosen))
	}
	return out
}
