package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/senomardetritos/sgbd-sqlserver/internal/api"
)

var servePort int
var serveDevMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API consumed by the web client. Plan progress is pushed to
websocket clients on /api/ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := loadRuntime(ctx, runtimeOptions{hub: true})
		if err != nil {
			return err
		}
		defer rt.close()
		hub := rt.hub

		port := rt.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		opts := []api.Option{
			api.WithHub(hub),
			api.WithDevMode(serveDevMode || rt.cfg.Server.DevMode),
		}
		if rt.metricsHandler != nil {
			opts = append(opts, api.WithMetricsHandler(rt.metricsHandler))
		}
		if r, ok := rt.reader(); ok {
			opts = append(opts, api.WithJournal(r))
		}
		srv := api.New(rt.engine, rt.logger, port, opts...)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return hub.Run(gctx)
		})
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			rt.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		})

		fmt.Fprintf(os.Stderr, "sgbd API: http://localhost:%d\n", port)
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8230, "port for the API server (default from config)")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development mode")
	rootCmd.AddCommand(serveCmd)
}
