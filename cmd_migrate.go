package main

import (
	"github.com/muhammadolammi/resumetailor/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.require("DB_URL"); err != nil {
			return err
		}
		db, _, err := openDB(cfg.DBUrl)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.ExecContext(cmd.Context(), database.Schema); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil
	},
}
