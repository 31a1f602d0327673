package profile

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Range is an inclusive [Min, Max] span of seconds.
type Range struct {
	Min float64
	Max float64
}

// IntRange is an inclusive [Min, Max] span of integers.
type IntRange struct {
	Min int
	Max int
}

// Endpoint is a weighted request template. Templates may contain a "{}"
// placeholder that is substituted per request (product ids, search terms).
type Endpoint struct {
	Template string
	Weight   float64
}

// Profile is an immutable template describing one class of simulated user:
// how long a session lasts, how many pages it visits, how long it pauses
// between requests and which endpoints it favors.
type Profile struct {
	Name            string
	SessionDuration Range
	PagesPerSession IntRange
	ThinkTime       Range
	Endpoints       []Endpoint

	sampler *Sampler
}

// New validates the template and precomputes the endpoint sampler.
func New(name string, dur Range, pages IntRange, think Range, endpoints []Endpoint) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile: name is required")
	}
	if dur.Min < 0 || dur.Max < dur.Min {
		return nil, fmt.Errorf("profile %s: bad session duration range (%v, %v)", name, dur.Min, dur.Max)
	}
	if pages.Min < 0 || pages.Max < pages.Min {
		return nil, fmt.Errorf("profile %s: bad pages range (%d, %d)", name, pages.Min, pages.Max)
	}
	if think.Min < 0 || think.Max < think.Min {
		return nil, fmt.Errorf("profile %s: bad think time range (%v, %v)", name, think.Min, think.Max)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("profile %s: at least one endpoint is required", name)
	}

	weights := make([]float64, len(endpoints))
	for i, e := range endpoints {
		weights[i] = e.Weight
	}
	sampler, err := NewSampler(weights)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}

	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)

	return &Profile{
		Name:            name,
		SessionDuration: dur,
		PagesPerSession: pages,
		ThinkTime:       think,
		Endpoints:       eps,
		sampler:         sampler,
	}, nil
}

// DrawDuration picks a session duration uniformly from the profile range.
func (p *Profile) DrawDuration(rng *rand.Rand) time.Duration {
	return drawSeconds(rng, p.SessionDuration)
}

// DrawPages picks a page budget uniformly from the profile range, inclusive.
func (p *Profile) DrawPages(rng *rand.Rand) int {
	if p.PagesPerSession.Max == p.PagesPerSession.Min {
		return p.PagesPerSession.Min
	}
	return p.PagesPerSession.Min + rng.Intn(p.PagesPerSession.Max-p.PagesPerSession.Min+1)
}

// DrawThink picks a think-time pause uniformly from the profile range.
func (p *Profile) DrawThink(rng *rand.Rand) time.Duration {
	return drawSeconds(rng, p.ThinkTime)
}

// PickEndpoint draws an endpoint template by weight.
func (p *Profile) PickEndpoint(rng *rand.Rand) string {
	return p.Endpoints[p.sampler.Sample(rng)].Template
}

func drawSeconds(rng *rand.Rand, r Range) time.Duration {
	span := r.Max - r.Min
	sec := r.Min
	if span > 0 {
		sec += rng.Float64() * span
	}
	return time.Duration(sec * float64(time.Second))
}

var searchTerms = []string{"laptop", "phone", "book", "shoes", "watch", "camera"}

// Resolve substitutes the "{}" placeholder in an endpoint template with a
// synthetic identifier: product templates get a random item id, search
// templates get a canned query term.
func Resolve(template string, rng *rand.Rand) string {
	if !strings.Contains(template, "{}") {
		return template
	}
	switch {
	case strings.Contains(template, "product"):
		return strings.Replace(template, "{}", fmt.Sprintf("item%d", 1+rng.Intn(1000)), 1)
	case strings.Contains(template, "search"):
		return strings.Replace(template, "{}", searchTerms[rng.Intn(len(searchTerms))], 1)
	default:
		return strings.Replace(template, "{}", fmt.Sprintf("%d", 1+rng.Intn(1000)), 1)
	}
}
