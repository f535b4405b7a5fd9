package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/search"
	"github.com/ppiankov/dealcore/internal/verify"
)

// Open builds a pipeline from configuration: the configured store, the
// HTTP search provider, the url prober and, when configured, a cached
// language model. Close releases the store.
func Open(cfg *model.Config, log zerolog.Logger) (*Pipeline, error) {
	store, err := cache.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := search.NewHTTPProvider(cfg.Search, cfg.HTTP)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open search provider: %w", err)
	}

	deps := Deps{
		Store:   store,
		Search:  provider,
		Checker: verify.NewProber(cfg.Verification, cfg.HTTP, log.With().Str("component", "prober").Logger()),
	}

	lm, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	switch {
	case err != nil:
		// the model is optional: run without it
		log.Warn().Err(err).Str("provider", cfg.LLM.Provider).Msg("language model disabled")
	case lm != nil:
		deps.LLM = llm.NewCachedProvider(lm, store, cfg.Store.LLMCacheTTL, log.With().Str("component", "llm").Logger())
		log.Debug().Str("provider", lm.Name()).Msg("language model enabled")
	}

	p, err := New(cfg, deps, WithLogger(log))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	p.closers = append(p.closers, store.Close)
	return p, nil
}
