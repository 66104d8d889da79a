package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/noticeboard/internal/service"
	"github.com/noah-isme/noticeboard/pkg/database"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin user, the Announcers group and the default categories",
	Long: `seed is idempotent: existing users, groups, grants and categories are left alone.
The admin is only created when BOOTSTRAP_ADMIN_PASSWORD is set.`,
	Example: "noticeboard seed --migrate",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		if seedMigrate {
			if err := database.Migrate(a.db); err != nil {
				return err
			}
		}

		svc := newServices(a.cfg, a.logger, a.db, a.redis)
		report, err := svc.bootstrap.Seed(cmd.Context(), service.BootstrapAdmin{
			Username: a.cfg.Bootstrap.AdminUsername,
			Email:    a.cfg.Bootstrap.AdminEmail,
			Password: a.cfg.Bootstrap.AdminPassword,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "admin created: %t, categories created: %d\n", report.AdminCreated, len(report.CategoriesCreated))
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", false, "apply pending migrations first")
}
