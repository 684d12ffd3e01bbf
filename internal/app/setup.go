package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jupiterlabs/reengage/internal/api"
	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/genai"
	"github.com/jupiterlabs/reengage/internal/knowledge"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
	"github.com/jupiterlabs/reengage/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		return nil, errors.New("app: logger is required")
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	client, err := provideGenAI(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.GenAI = client

	store, err := provideKnowledge(ctx, client, logger)
	if err != nil {
		return nil, err
	}
	a.Knowledge = store

	a.Sessions = session.NewStore(session.Config{TTL: cfg.SessionTTL},
		logger.With("component", "session"))

	a.Offers = provideOffers(cfg)

	a.Dialogue = dialogue.New(dialogue.Config{
		Sessions:      a.Sessions,
		Knowledge:     a.Knowledge,
		Offers:        a.Offers,
		Generator:     a.GenAI,
		Logger:        logger.With("component", "dialogue"),
		TopK:          cfg.Retrieval.TopK,
		MinScore:      cfg.Retrieval.MinScore,
		HistoryWindow: cfg.HistoryWindow,
		OfferLink:     cfg.ApplicationLink,
	})

	server, err := api.NewServer(api.ServerConfig{
		Logger:   logger.With("component", "api"),
		Dialogue: a.Dialogue,
		Sessions: a.Sessions,
		Offers:   a.Offers,
		APIKey:   cfg.APIKey,
		WhatsApp: cfg.WhatsApp,
		Ready:    provideReadiness(a.GenAI),
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	// Background session janitor, stopped by Close.
	janitorCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.startJanitor(janitorCtx)

	return a, nil
}

// provideGenAI initializes Genkit with the configured provider and wraps it in
// the resilient client.
func provideGenAI(ctx context.Context, cfg *config.Config, logger log.Logger) (*genai.Client, error) {
	client, err := genai.New(ctx, cfg, genai.Options{}, logger.With("component", "genai"))
	if err != nil {
		return nil, fmt.Errorf("initializing model client: %w", err)
	}
	return client, nil
}

// provideKnowledge embeds the card corpus at startup. This is the one upfront
// backend dependency: a service that cannot ground replies must not start.
func provideKnowledge(ctx context.Context, embedder knowledge.Embedder, logger log.Logger) (*knowledge.Store, error) {
	store, err := knowledge.Load(ctx, embedder, knowledge.DefaultCorpus())
	if err != nil {
		return nil, fmt.Errorf("loading knowledge corpus: %w", err)
	}
	logger.Info("knowledge corpus loaded", "chunks", store.Len())
	return store, nil
}

// provideOffers builds the initial offer state from configuration.
func provideOffers(cfg *config.Config) *offer.State {
	return offer.NewState(offer.Offer{
		Title:       cfg.Offer.Title,
		Message:     cfg.Offer.Message,
		UrgencyText: cfg.Offer.UrgencyText,
		CTA:         cfg.Offer.CTA,
		Link:        cfg.ApplicationLink,
		MaxShows:    cfg.Offer.MaxShows,
	})
}

// provideReadiness reports not-ready while the model circuit is open.
func provideReadiness(client *genai.Client) func() error {
	return func() error {
		if state := client.BreakerState(); state == genai.CircuitOpen {
			return fmt.Errorf("model backend unavailable: circuit %s", state)
		}
		return nil
	}
}
