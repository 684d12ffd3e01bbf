// Package app provides application initialization and dependency injection.
//
// App is the container that wires the service together: the Genkit-backed
// model client, the embedded knowledge corpus, the session store, the offer
// state, the dialogue orchestrator, and the HTTP API server. Setup builds it
// in dependency order; Close releases everything.
package app

import (
	"context"
	"time"

	"github.com/jupiterlabs/reengage/internal/api"
	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/genai"
	"github.com/jupiterlabs/reengage/internal/knowledge"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
	"github.com/jupiterlabs/reengage/internal/session"
)

// sweepInterval is how often the expired-session janitor runs.
const sweepInterval = 10 * time.Minute

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	GenAI     *genai.Client
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Offers    *offer.State
	Dialogue  *dialogue.Orchestrator
	Server    *api.Server

	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops background work. The App holds no external connections; Genkit
// clients are released with the process.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		<-a.done
	}
	if a.Logger != nil {
		a.Logger.Info("application shut down")
	}
	return nil
}

// startJanitor runs the periodic expired-session sweep until ctx is done.
// Lazy eviction on access already keeps reads correct; the janitor only
// reclaims memory for users who never come back.
func (a *App) startJanitor(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sessions.SweepExpired(); n > 0 {
				a.Logger.Debug("session sweep", "evicted", n)
			}
		}
	}
}
