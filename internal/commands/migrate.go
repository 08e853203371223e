package commands

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/threadkeep/threadkeep/internal/config"
	"github.com/threadkeep/threadkeep/internal/store"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is required")
			}

			st, err := store.NewPostgresStore(cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					log.Printf("failed to close store: %v", err)
				}
			}()

			if err := store.RunMigrations(st.DB()); err != nil {
				return err
			}

			log.Println("Migrations applied")
			return nil
		},
	}
}
