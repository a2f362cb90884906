package factory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/internal/infra/paginator"
	"github.com/NepsyCrawler/internal/infra/provider"
	"github.com/NepsyCrawler/internal/infra/resolver"
	"github.com/NepsyCrawler/internal/infra/session"
	"github.com/NepsyCrawler/pkg/config"
)

// NewResolver loads the symbol to company id mapping.
func NewResolver(cfg *config.Config) (*resolver.FileResolver, error) {
	r, err := resolver.LoadMapping(cfg.CompanyIDMappingPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded company id mapping", "path", cfg.CompanyIDMappingPath, "companies", r.Len())
	return r, nil
}

// NewOpener creates the session opener shared by every source.
func NewOpener(cfg *config.Config, r *resolver.FileResolver) *session.Opener {
	opts := []session.Option{
		session.WithTimeout(cfg.RequestTimeout),
		session.WithResolver(r),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, session.WithUserAgent(cfg.UserAgent))
	}
	return session.NewOpener(opts...)
}

// NewSources creates one source per category.
func NewSources(cfg *config.Config, opener *session.Opener) (map[domain.Category]domain.Source, error) {
	if cfg.ShareSansarURL == "" || cfg.FloorsheetURL == "" {
		return nil, fmt.Errorf("remote URLs not configured")
	}
	if cfg.OffsetBatchSize < 1 || cfg.OffsetBatchSize > 500 {
		return nil, fmt.Errorf("invalid batch size: %d (must be 1-500)", cfg.OffsetBatchSize)
	}

	sources := provider.NewSources(opener, provider.Settings{
		ShareSansarURL: cfg.ShareSansarURL,
		FloorsheetURL:  cfg.FloorsheetURL,
		BatchSize:      cfg.OffsetBatchSize,
		PageDelay:      domain.Delay{Min: cfg.PageDelayMin, Max: cfg.PageDelayMax},
		Retry: paginator.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     []time.Duration{cfg.RetryBackoff},
		},
	})
	for c, s := range sources {
		slog.Info("Registered source", "category", c, "source", s.Name())
	}
	return sources, nil
}

// NewDailySources creates the prices source fed by the today-share-price summary.
func NewDailySources(cfg *config.Config, opener *session.Opener) (map[domain.Category]domain.Source, error) {
	if cfg.ShareSansarURL == "" {
		return nil, fmt.Errorf("remote URLs not configured")
	}
	return provider.NewDailySources(opener, provider.Settings{ShareSansarURL: cfg.ShareSansarURL}), nil
}
