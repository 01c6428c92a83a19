package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/clock/system"
	"github.com/JakeFAU/newsroom-crawler/internal/config"
	"github.com/JakeFAU/newsroom-crawler/internal/id/uuid"
)

// newMigrateCmd creates the 'migrate' subcommand, which applies the schema to
// the configured database.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the article schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			backend := appInstance.cfg.Storage.Backend
			if backend == config.BackendMemory {
				return fmt.Errorf("storage.backend is %q; nothing to migrate", backend)
			}
			// Migration runs explicitly below, not through auto_migrate.
			appInstance.cfg.Storage.AutoMigrate = false
			repo, err := appInstance.openRepository(cmd.Context(), uuid.New(), system.New())
			if err != nil {
				return err
			}
			m, ok := repo.(migrator)
			if !ok {
				return fmt.Errorf("backend %q does not support migrations", backend)
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate %s: %w", backend, err)
			}
			appInstance.logger.Info("schema is up to date", zap.String("backend", backend))
			return nil
		},
	}
}
