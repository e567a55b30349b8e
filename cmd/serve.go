package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live rate views over HTTP",
	Long: `Starts an HTTP server exposing rate views for a browser front end.
Each view owns its own refresh cycle; views that are not polled are
closed after view_idle_timeout_ms.

Endpoints:
  GET    /api/countries
  POST   /api/views
  GET    /api/views/:id
  PUT    /api/views/:id/from     {"code": "NZ"}
  PUT    /api/views/:id/to       {"code": "GB"}
  PUT    /api/views/:id/amount   {"amount": 100}
  POST   /api/views/:id/retry
  DELETE /api/views/:id
  GET    /healthz
  GET    /metrics

Examples:
  fxrates serve
  fxrates serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(server.Options{
		Config:    cfg,
		Fetcher:   rateClient,
		Countries: country.Default(),
		Logger:    log.Named("server"),
		Registry:  reg,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, addr)
}
