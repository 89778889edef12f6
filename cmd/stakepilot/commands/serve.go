package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stakepilot/stakepilot/internal/api"
	"github.com/stakepilot/stakepilot/internal/logging"
)

// NewServeCmd runs the HTTP API server fronting the staking session.
func NewServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the staking session over HTTP",
		Long: "Starts an HTTP server exposing the derived view, session status, operation\n" +
			"submission, a WebSocket event stream and Prometheus metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s, err := buildSession(ctx, signerOptional)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.orch == nil {
				// Still serve /v1/status so monitoring sees the state, but
				// say loudly what is wrong.
				Warning(fmt.Sprintf("chain %d (%s) has no known contract deployment; serving status only",
					s.info.ChainID, s.info.ChainName))
			}

			cfg := api.ServerConfig{
				ListenAddr:        s.cfg.API.ListenAddr,
				ReadTimeout:       time.Duration(s.cfg.API.ReadTimeoutSecs) * time.Second,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      time.Duration(s.cfg.API.WriteTimeoutSecs) * time.Second,
				IdleTimeout:       time.Duration(s.cfg.API.IdleTimeoutSecs) * time.Second,
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			server := api.NewServer(cfg, s.info, s.orch, s.collector)
			if err := server.Start(); err != nil {
				return err
			}

			Info(fmt.Sprintf("serving on http://%s", cfg.ListenAddr))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logging.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	return cmd
}
