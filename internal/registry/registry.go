// Package registry holds the static catalog of tracked instruments. The
// catalog is resolved once at startup; lookups never touch the network.
package registry

import (
	"sort"
	"strings"

	"github.com/kvasirlabs/momenta/models"
)

// Registry is an immutable instrument catalog keyed by canonical id.
type Registry struct {
	byID     map[string]models.Instrument
	bySymbol map[string]models.Instrument
	ordered  []models.Instrument
}

// New builds a registry from the configured universe. Instruments are assumed
// validated (unique ids, known categories) by config loading.
func New(instruments []models.Instrument) *Registry {
	r := &Registry{
		byID:     make(map[string]models.Instrument, len(instruments)),
		bySymbol: make(map[string]models.Instrument, len(instruments)),
		ordered:  make([]models.Instrument, len(instruments)),
	}
	copy(r.ordered, instruments)
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].ID < r.ordered[j].ID })
	for _, inst := range r.ordered {
		r.byID[strings.ToLower(inst.ID)] = inst
		r.bySymbol[strings.ToUpper(inst.Symbol)] = inst
	}
	return r
}

// Get resolves an instrument by canonical id or symbol (case-insensitive).
func (r *Registry) Get(query string) (models.Instrument, error) {
	if inst, ok := r.byID[strings.ToLower(query)]; ok {
		return inst, nil
	}
	if inst, ok := r.bySymbol[strings.ToUpper(query)]; ok {
		return inst, nil
	}
	return models.Instrument{}, &models.InstrumentNotFoundError{Query: query}
}

// All returns the full universe ordered by id.
func (r *Registry) All() []models.Instrument {
	out := make([]models.Instrument, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ByCategory returns the instruments of one category, ordered by id.
func (r *Registry) ByCategory(cat models.Category) []models.Instrument {
	var out []models.Instrument
	for _, inst := range r.ordered {
		if inst.Category == cat {
			out = append(out, inst)
		}
	}
	return out
}

// Len returns the universe size.
func (r *Registry) Len() int { return len(r.ordered) }
