package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/api"
	"github.com/giantswarm/sdc-prioritizer/internal/server"
)

func newAPICmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Start the REST API only",
		Long: `Start the REST API for uploading, prioritizing and evaluating test suites.

Endpoints:
  POST /v1/test-suite/               upload a suite
  GET  /v1/test-suite/prioritization rank a stored suite
  POST /v1/test-suite/evaluation     rank and score a stored suite
  GET  /v1/history/                  evaluation history as CSV
  GET  /v1/strategies                registered strategies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.HTTP.Addr
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			httpServer := server.NewHTTPServer(addr, api.NewRouter(store))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("REST API listening on %s\n", addr)
			return serveUntilDone(ctx, "REST API", httpServer.ListenAndServe, httpServer.Shutdown)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http.addr)")

	return cmd
}
