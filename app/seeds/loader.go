package seeds

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/feedloop/feedloop/app/database"
)

// Seed is one YAML source definition.
type Seed struct {
	URL      string       `yaml:"url"`
	Title    string       `yaml:"title"`
	Settings SeedSettings `yaml:"settings"`
}

type SeedSettings struct {
	Disabled       bool   `yaml:"disabled"`
	FetchTimeout   int    `yaml:"fetch_timeout"`
	UserAgent      string `yaml:"user_agent"`
	ExtractContent bool   `yaml:"extract_content"`
}

// Loader upserts seed definitions into the sources table at startup. Sources
// created through the API are left alone.
type Loader struct {
	dir        string
	sourceRepo database.SourceRepository
}

func NewLoader(dir string, sourceRepo database.SourceRepository) *Loader {
	return &Loader{dir: dir, sourceRepo: sourceRepo}
}

// Run loads every *.yml file in the seeds directory. A missing directory is
// a no-op. Returns the number of seeds applied.
func (l *Loader) Run(ctx context.Context) (int, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to find YML files: %w", err)
	}

	applied := 0
	for _, file := range files {
		seed, err := l.parseSeed(file)
		if err != nil {
			return applied, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.apply(ctx, seed); err != nil {
			return applied, fmt.Errorf("error applying %s: %w", file, err)
		}
		applied++

		slog.Debug("Seed loaded", "url", seed.URL, "title", seed.Title, "disabled", seed.Settings.Disabled)
	}

	return applied, nil
}

func (l *Loader) parseSeed(file string) (*Seed, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if seed.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if seed.Settings.FetchTimeout < 0 {
		return nil, fmt.Errorf("fetch timeout must be non-negative")
	}

	// Derive a title from the filename when the seed has none
	if seed.Title == "" {
		name := filepath.Base(file)
		seed.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return &seed, nil
}

func (l *Loader) apply(ctx context.Context, seed *Seed) error {
	settings := database.SourceSettings{
		Disabled:       seed.Settings.Disabled,
		FetchTimeout:   seed.Settings.FetchTimeout,
		UserAgent:      seed.Settings.UserAgent,
		ExtractContent: seed.Settings.ExtractContent,
	}

	existing, err := l.sourceRepo.GetSourceByURL(ctx, seed.URL)
	if err != nil {
		return err
	}

	if existing == nil {
		return l.sourceRepo.CreateSource(ctx, &database.Source{
			URL:      seed.URL,
			Title:    seed.Title,
			Settings: settings,
		})
	}

	return l.sourceRepo.UpdateSourceSeed(ctx, existing.ID, seed.Title, settings)
}
