package attractor

import (
	"context"
	"fmt"
	"time"

	"github.com/nmtsys/memstore/pkg/errs"
	"github.com/nmtsys/memstore/pkg/ids"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/vector"
)

// MaxAttractors bounds the live attractor set (spec.md §3: "Capacity-
// bounded; weakest pruned when exceeded").
const MaxAttractors = 100

// CreateAttractorInput is the input to CreateAttractor.
type CreateAttractorInput struct {
	Name          string
	Description   string
	Embedding     []float32
	Strength      float64
	Probability   float64
	Priority      int
	Deadline      *time.Time
	Prerequisites []string
}

// CreateAttractor persists a new attractor, evicting the weakest live
// attractor first if the store is already at MaxAttractors.
func (p *Planner) CreateAttractor(ctx context.Context, in CreateAttractorInput) (model.Attractor, error) {
	if len(in.Embedding) == 0 {
		return model.Attractor{}, fmt.Errorf("%w: attractor embedding is empty", errs.InvalidInput)
	}
	priority := in.Priority
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}

	var all []model.Attractor
	if err := p.Attractors.All(ctx, func(a model.Attractor) bool { all = append(all, a); return true }); err != nil {
		return model.Attractor{}, err
	}
	if len(all) >= MaxAttractors {
		weakest := all[0]
		for _, a := range all[1:] {
			if a.Strength < weakest.Strength {
				weakest = a
			}
		}
		if err := p.Attractors.Delete(ctx, weakest.ID); err != nil {
			return model.Attractor{}, err
		}
	}

	now := time.Now().UTC()
	a := model.Attractor{
		ID:            ids.New(),
		Name:          in.Name,
		Description:   in.Description,
		Embedding:     vector.Normalize(in.Embedding),
		Strength:      vector.Clamp(in.Strength, 0, 1),
		Probability:   vector.Clamp(in.Probability, 0, 1),
		Priority:      priority,
		Deadline:      in.Deadline,
		Prerequisites: in.Prerequisites,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.Attractors.Put(ctx, a); err != nil {
		return model.Attractor{}, err
	}
	return a, nil
}

// RecordActivation increments an attractor's activation count and refreshes
// its UpdatedAt (the decay clock's reference point), countering decay the
// way Hebbian reinforcement counters synapse pruning.
func (p *Planner) RecordActivation(ctx context.Context, id string) (model.Attractor, error) {
	a, err := p.Attractors.Get(ctx, id)
	if err != nil {
		return model.Attractor{}, err
	}
	a.Activations++
	a.UpdatedAt = time.Now().UTC()
	if err := p.Attractors.Put(ctx, a); err != nil {
		return model.Attractor{}, err
	}
	return a, nil
}

// DecaySweep applies DecayStrength to every live attractor based on time
// since UpdatedAt, deleting any that cross ShouldPrune's threshold. Meant
// to be called periodically (e.g. from pkg/scheduler's compaction tick).
func (p *Planner) DecaySweep(ctx context.Context) (decayed int, pruned int, err error) {
	now := time.Now().UTC()
	var all []model.Attractor
	if err := p.Attractors.All(ctx, func(a model.Attractor) bool { all = append(all, a); return true }); err != nil {
		return 0, 0, err
	}

	for _, a := range all {
		a.Strength = DecayStrength(a.Strength, a.UpdatedAt, now)
		if ShouldPrune(a.Strength, a.Activations) {
			if err := p.Attractors.Delete(ctx, a.ID); err != nil {
				return decayed, pruned, err
			}
			pruned++
			continue
		}
		if err := p.Attractors.Put(ctx, a); err != nil {
			return decayed, pruned, err
		}
		decayed++
	}
	return decayed, pruned, nil
}
