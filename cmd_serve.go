package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		required := append([]string{"DB_URL", "RABBITMQ_URL"}, r2Keys...)
		if err := cfg.require(required...); err != nil {
			return err
		}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, cancel := signalContext()
		defer cancel()

		db, queries, err := openDB(cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()

		objects, err := newObjectStore(ctx, cfg.R2)
		if err != nil {
			return err
		}
		publisher, err := dialPublisher(cfg.RabbitMQUrl)
		if err != nil {
			return err
		}
		defer publisher.conn.Close()

		server := &Server{
			DB:        queries,
			Objects:   objects,
			Publisher: publisher,
			Logger:    logger,
			Username:  cfg.DashboardUsername,
			Password:  cfg.DashboardPassword,
		}
		return server.Run(ctx, cfg.Port)
	},
}
