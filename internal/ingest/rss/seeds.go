package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/process/sources"
)

// Seed is one feed entry of a seed file. In YAML it is either a bare URL
// or a mapping with the fields below.
type Seed struct {
	URL      string `yaml:"url"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Language string `yaml:"language"`
	Private  bool   `yaml:"private"`
}

// UnmarshalYAML accepts both "- https://..." and "- url: https://..." entries.
func (s *Seed) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.URL = strings.TrimSpace(node.Value)
		return nil
	}

	type plain Seed

	if err := node.Decode((*plain)(s)); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	s.URL = strings.TrimSpace(s.URL)

	return nil
}

// seedFile is the YAML layout:
//
//	feeds:
//	  - https://...
//	  - url: https://...
//	    category: tech
type seedFile struct {
	Feeds []Seed `yaml:"feeds"`
}

// LoadSeeds reads a seed file from path.
func LoadSeeds(path string) ([]Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	return ParseSeeds(f)
}

// ParseSeeds decodes a seed file. Entries without a URL are rejected and
// repeated URLs are kept once.
func ParseSeeds(r io.Reader) ([]Seed, error) {
	var file seedFile

	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Feeds))
	out := make([]Seed, 0, len(file.Feeds))

	for i, s := range file.Feeds {
		if s.URL == "" {
			return nil, fmt.Errorf("seed %d has no url: %w", i, apperrors.ErrInvalidInput)
		}

		if _, ok := seen[s.URL]; ok {
			continue
		}

		seen[s.URL] = struct{}{}
		out = append(out, s)
	}

	return out, nil
}

// Registerer registers a feed source.
type Registerer interface {
	Register(ctx context.Context, req sources.Registration) (*domain.Source, error)
}

// SeedReport counts seed registration outcomes.
type SeedReport struct {
	Registered int
	Duplicates int
	Failed     int
}

// RegisterSeeds registers every seed through r. Duplicates are skipped and
// failures logged; neither stops the run.
func RegisterSeeds(ctx context.Context, r Registerer, seeds []Seed, logger *zerolog.Logger) SeedReport {
	var report SeedReport

	for _, s := range seeds {
		_, err := r.Register(ctx, sources.Registration{
			URL:      s.URL,
			Title:    s.Title,
			Category: s.Category,
			Language: s.Language,
			IsPublic: !s.Private,
		})

		switch {
		case err == nil:
			report.Registered++
		case errors.Is(err, sources.ErrDuplicateSource):
			report.Duplicates++
			logger.Debug().Str("url", s.URL).Msg("seed feed already registered")
		default:
			report.Failed++
			logger.Warn().Err(err).Str("url", s.URL).Msg("seed feed registration failed")
		}
	}

	return report
}
