// Package registry ranks the physical devices visible to an instance and picks
// the one to render with, along with its graphics and present queue families.
package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var ErrNoSuitableDevice = errors.New("failed to find a suitable GPU")

// Candidate is a snapshot of what one physical device reported during a
// single selection pass.
type Candidate struct {
	Device core1_0.PhysicalDevice
	Name   string

	Discrete            bool
	MaxImageDimension2D int
	GeometryShader      bool
	Extensions          map[string]struct{}

	// Counts of surface formats and present modes reported for the target
	// surface. Both are zero when the required extensions are missing.
	SurfaceFormats int
	PresentModes   int

	Families QueueFamilySource
}

type Weights struct {
	DiscreteBonus      int
	ImageDimensionRate int
}

func DefaultWeights() Weights {
	return Weights{DiscreteBonus: 1000, ImageDimensionRate: 1}
}

func (w Weights) Validate() error {
	if w.DiscreteBonus < 0 || w.ImageDimensionRate < 0 {
		return errors.Newf("scoring weights must not be negative: %+v", w)
	}
	return nil
}

func (c *Candidate) hasExtensions(required []string) bool {
	for _, extension := range required {
		if _, ok := c.Extensions[extension]; !ok {
			return false
		}
	}
	return true
}

// Score returns the suitability of a candidate. Zero means unusable.
func Score(c *Candidate, required []string, w Weights) int {
	if !c.GeometryShader {
		return 0
	}
	if !c.hasExtensions(required) {
		return 0
	}
	if c.SurfaceFormats == 0 || c.PresentModes == 0 {
		return 0
	}

	score := 0
	if c.Discrete {
		score += w.DiscreteBonus
	}
	score += c.MaxImageDimension2D * w.ImageDimensionRate
	return score
}

type Selection struct {
	Candidate *Candidate
	Score     int
	Indices   QueueFamilyIndices
}

// SelectDevice picks the candidate with the strictly highest non-zero score;
// ties keep the earlier candidate. Queue families are derived for the winner
// only.
func SelectDevice(candidates []*Candidate, required []string, w Weights) (Selection, error) {
	if err := w.Validate(); err != nil {
		return Selection{}, err
	}

	var best *Candidate
	bestScore := 0
	for _, candidate := range candidates {
		score := Score(candidate, required, w)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if best == nil {
		return Selection{}, errors.Mark(errors.Newf("none of %d devices scored above zero", len(candidates)), ErrNoSuitableDevice)
	}

	indices, err := FindQueueFamilies(best.Families)
	if err != nil {
		return Selection{}, errors.Wrapf(err, "device %q", best.Name)
	}

	return Selection{
		Candidate: best,
		Score:     bestScore,
		Indices:   indices,
	}, nil
}
