package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/documentai/docai/internal/api"
	"github.com/documentai/docai/internal/core/ports"
)

const shutdownTimeout = 10 * time.Second

func newAgentCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Serve the session store to local consumers over HTTP",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  c.action(cmdAgent),
	}
}

// cmdAgent serves the session agent until ctx is cancelled.
func cmdAgent(ctx context.Context, a *app, _ []string) error {
	if len(a.cfg.Agent.Addr) == 0 {
		return usagef("agent address is empty")
	}

	e := api.NewAgentRouter(api.AgentDeps{
		Addr:      a.cfg.Agent.Addr,
		Session:   a.session,
		Documents: a.documents,
		Batch:     a.dispatcher,
		Readiness: map[string]ports.Pinger{"storage": a.storage},
		Log:       a.log.With().Str("component", "agent").Logger(),
	})

	unsubscribe := a.session.Subscribe(func(s ports.SessionState) {
		evt := a.log.Debug().Bool("authenticated", s.Authenticated()).Bool("loading", s.Loading)
		if s.User != nil {
			evt = evt.Str("email", s.User.Email)
		}
		evt.Msg("session changed")
	})
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Agent.Addr).Msg("session agent listening")
		errCh <- e.Start(a.cfg.Agent.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down session agent")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
