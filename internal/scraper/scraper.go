package scraper

import (
	"context"
	"fmt"
	"time"

	"AppealScanner/internal/domain"
)

// Row is one discovered meeting on a listing page.
type Row struct {
	Date   time.Time
	PDFURL string
	Type   domain.MeetingType
}

// Config carries the per-source parameters a scraper variant needs.
type Config struct {
	BaseURL     string
	ListingPath string
}

// Scraper turns one listing page index into the meetings found on it.
// An empty slice signals that there are no more rows.
type Scraper interface {
	Name() string
	ListPage(ctx context.Context, page int) ([]Row, error)
}

// Factory builds a scraper variant for one configured source.
type Factory func(cfg Config) Scraper

// Registry keeps a mapping from fetcher names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a scraper factory.
func (r *Registry) Register(name string, f Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[name] = f
}

// Resolve builds a scraper for the named fetcher or errors if it is absent.
func (r *Registry) Resolve(name string, cfg Config) (Scraper, error) {
	if f, ok := r.factories[name]; ok {
		return f(cfg), nil
	}
	return nil, fmt.Errorf("scraper %s is not registered", name)
}
