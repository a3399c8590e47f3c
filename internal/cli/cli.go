package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/casadx/pedidos/internal/app"
	"github.com/casadx/pedidos/internal/migration"
	"github.com/casadx/pedidos/internal/seeder"
)

const stopTimeout = 10 * time.Second

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	infoColor = color.New(color.FgCyan)
	errColor  = color.New(color.FgRed, color.Bold)
)

// NewRootCommand builds the root pedidos CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pedidos",
		Short:         "Pedidos service toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())

	return root
}

// ExecuteContext runs the pedidos CLI; ctx cancellation stops long-running
// commands such as start.
func ExecuteContext(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		errColor.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "serve"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				return reportVersion(ctx, cmd.OutOrStdout(), mig, "migrations applied")
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				return reportVersion(ctx, cmd.OutOrStdout(), mig, "migrations rolled back")
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				return reportVersion(ctx, cmd.OutOrStdout(), mig, "schema")
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load example pedidos into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Infra, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				n, err := seed.Pedidos(ctx)
				if err != nil {
					return err
				}
				if n == 0 {
					infoColor.Fprintln(cmd.OutOrStdout(), "pedidos already present, nothing seeded")
					return nil
				}
				okColor.Fprintf(cmd.OutOrStdout(), "seeded %d pedidos\n", n)
				return nil
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error) error {
	var mig *migration.Migrator
	opts := fx.Options(app.Infra, fx.Populate(&mig))
	return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
		return fn(ctx, mig)
	})
}

func reportVersion(ctx context.Context, out io.Writer, mig *migration.Migrator, label string) error {
	version, err := mig.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	okColor.Fprintf(out, "%s ", label)
	infoColor.Fprintf(out, "(version %d)\n", version)
	return nil
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
