package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lecture_builder/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			agent, err := ctx.newAgent()
			if err != nil {
				return err
			}
			if cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			srv, err := server.New(client,
				server.WithReformatter(agent),
				server.WithIndexID(cfg.TwelveLabs.IndexID),
				server.WithDefaultVideoID(cfg.TwelveLabs.VideoID),
				server.WithLogger(logger),
				server.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeoutSeconds)*time.Second),
			)
			if err != nil {
				return err
			}

			listen := cfg.Server.Addr
			if addr != "" {
				listen = addr
			}
			httpSrv := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", zap.String("addr", listen), zap.Bool("reformatter", agent != nil))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logger.Info("server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
