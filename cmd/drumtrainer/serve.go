package main

import (
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cbegin/drumtrainer-go/internal/api"
	"github.com/cbegin/drumtrainer-go/internal/logger"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Server port (default from PORT or 8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	port := servePort
	if port == "" {
		port = cfg.Port
	}

	router := api.SetupRouter(cfg, releaseVersion)
	logger.Info("starting server", logger.Fields{"port": port, "version": releaseVersion})
	if err := router.Run(":" + port); err != nil {
		sentry.CaptureException(err)
		return err
	}
	return nil
}
