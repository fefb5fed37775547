package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/intake/internal/api"
	"github.com/steveyegge/intake/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluation and feedback API over HTTP",
	Long: `Start the HTTP API:

  POST /v1/evaluate         score a batch of candidate questions
  POST /v1/feedback/batch   process feedback reports from the request body
  GET  /healthz             content store and rewriter readiness
  GET  /metrics             Prometheus metrics

Examples:
  intake serve                 # Listen on server.addr (default :8080)
  intake serve --addr :9090    # Override the listen address`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		if err := serve(addr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// serve runs the API until SIGINT/SIGTERM. The app is closed before it
// returns, including on error.
func serve(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	proc, err := a.newProcessor()
	if err != nil {
		return err
	}

	router := api.SetupRouter(cfg.Server.Mode, api.Deps{
		Evaluator: a.pipeline,
		Feedback:  proc,
		Health:    a.health,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Printf("%s listening on %s\n", color.GreenString("✓"), addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logging.Infof("[API] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("[API] shutdown: %v", err)
		}
	}
	a.pruneLedger(context.Background())
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}
