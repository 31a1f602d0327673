package profile

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry holds the available profiles together with the mix weights
// that decide how often each one is picked for a new session.
type Registry struct {
	profiles []*Profile
	mix      *Sampler
}

// NewRegistry builds a registry from profiles and their mix weights.
// Both slices must have the same length; weights are normalized.
func NewRegistry(profiles []*Profile, weights []float64) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("registry: no profiles")
	}
	if len(profiles) != len(weights) {
		return nil, fmt.Errorf("registry: %d profiles but %d weights", len(profiles), len(weights))
	}
	mix, err := NewSampler(weights)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return &Registry{profiles: profiles, mix: mix}, nil
}

// Select draws a profile according to the mix distribution.
func (r *Registry) Select(rng *rand.Rand) *Profile {
	return r.profiles[r.mix.Sample(rng)]
}

// Profiles returns the registered profiles in registration order.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Lookup returns the profile with the given name, if registered.
func (r *Registry) Lookup(name string) (*Profile, bool) {
	for _, p := range r.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Builtin returns the stock behavior catalog: five user classes mixed
// 40/25/20/10/5, modeling casual browsing through crawler traffic.
func Builtin() *Registry {
	mustProfile := func(name string, dur Range, pages IntRange, think Range, eps []Endpoint) *Profile {
		p, err := New(name, dur, pages, think, eps)
		if err != nil {
			panic(err)
		}
		return p
	}

	profiles := []*Profile{
		mustProfile("casual_browser",
			Range{60, 300}, IntRange{3, 8}, Range{5, 15},
			[]Endpoint{
				{"/", 0.50},
				{"/product/{}", 0.20},
				{"/api/data", 0.15},
				{"/search?q={}", 0.15},
			}),
		mustProfile("power_user",
			Range{300, 900}, IntRange{15, 30}, Range{2, 8},
			[]Endpoint{
				{"/dashboard", 0.30},
				{"/api/data", 0.30},
				{"/search?q={}", 0.20},
				{"/product/{}", 0.10},
				{"/", 0.10},
			}),
		mustProfile("shopper",
			Range{180, 600}, IntRange{8, 15}, Range{3, 12},
			[]Endpoint{
				{"/product/{}", 0.40},
				{"/search?q={}", 0.30},
				{"/checkout", 0.20},
				{"/", 0.10},
			}),
		mustProfile("bot",
			Range{600, 3600}, IntRange{50, 200}, Range{0.5, 2},
			[]Endpoint{
				{"/", 0.20},
				{"/product/{}", 0.25},
				{"/api/data", 0.25},
				{"/dashboard", 0.15},
				{"/search?q={}", 0.15},
			}),
		mustProfile("mobile_user",
			Range{60, 180}, IntRange{2, 5}, Range{8, 20},
			[]Endpoint{
				{"/", 0.60},
				{"/product/{}", 0.20},
				{"/api/data", 0.15},
				{"/search?q={}", 0.05},
			}),
	}

	reg, err := NewRegistry(profiles, []float64{0.40, 0.25, 0.20, 0.10, 0.05})
	if err != nil {
		panic(err)
	}
	return reg
}

type profileFile struct {
	Profiles []struct {
		Name            string  `yaml:"name"`
		Weight          float64 `yaml:"weight"`
		SessionDuration []float64 `yaml:"session_duration"`
		PagesPerSession []int     `yaml:"pages_per_session"`
		ThinkTime       []float64 `yaml:"think_time"`
		Endpoints       []struct {
			Path   string  `yaml:"path"`
			Weight float64 `yaml:"weight"`
		} `yaml:"endpoints"`
	} `yaml:"profiles"`
}

// LoadFile reads a custom profile catalog from a YAML file. The file
// replaces the builtin registry entirely.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var pf profileFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}
	if len(pf.Profiles) == 0 {
		return nil, fmt.Errorf("profiles %s: no profiles defined", path)
	}

	pair := func(vals []float64, what, name string) (Range, error) {
		if len(vals) != 2 {
			return Range{}, fmt.Errorf("profile %s: %s must be [min, max]", name, what)
		}
		return Range{vals[0], vals[1]}, nil
	}

	var profiles []*Profile
	var weights []float64
	for _, spec := range pf.Profiles {
		dur, err := pair(spec.SessionDuration, "session_duration", spec.Name)
		if err != nil {
			return nil, err
		}
		think, err := pair(spec.ThinkTime, "think_time", spec.Name)
		if err != nil {
			return nil, err
		}
		if len(spec.PagesPerSession) != 2 {
			return nil, fmt.Errorf("profile %s: pages_per_session must be [min, max]", spec.Name)
		}

		var endpoints []Endpoint
		for _, e := range spec.Endpoints {
			endpoints = append(endpoints, Endpoint{Template: e.Path, Weight: e.Weight})
		}

		p, err := New(spec.Name, dur,
			IntRange{spec.PagesPerSession[0], spec.PagesPerSession[1]},
			think, endpoints)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
		weights = append(weights, spec.Weight)
	}

	return NewRegistry(profiles, weights)
}
