package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-topup/internal/config"
	"ms-topup/internal/database/migrations"
	"ms-topup/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "manage the top-up order schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.Database.MigrationsDir, "dir", cfg.Database.MigrationsDir, "migrations directory")
	rootCmd.PersistentFlags().StringVar(&cfg.Database.DSN, "dsn", cfg.Database.DSN, "postgres DSN")

	rootCmd.AddCommand(
		createCommand(cfg),
		upCommand(cfg),
		downCommand(cfg),
		gotoCommand(cfg),
		versionCommand(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withRunner(cfg *config.Config, fn func(r *migrations.Runner) error) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	runner := migrations.NewRunner(sqlDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, logger.NewNop())
	defer runner.Close()
	return fn(runner)
}

func createCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "create sql migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, down, err := migrations.Create(cfg.Database.MigrationsDir, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Println("Created SQL up script:", up)
			fmt.Println("Created SQL down script:", down)
			return nil
		},
	}
}

func upCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "migrate all the way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cfg, func(r *migrations.Runner) error {
				if err := r.RunMigrations(); err != nil {
					return err
				}
				fmt.Println("Migrated up")
				return nil
			})
		},
	}
}

func downCommand(cfg *config.Config) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			if all {
				steps = 0
			}
			return withRunner(cfg, func(r *migrations.Runner) error {
				if err := r.MigrateDown(steps); err != nil {
					return err
				}
				fmt.Println("Migrated down")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func gotoCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "goto [version]",
		Short: "migrate up or down to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withRunner(cfg, func(r *migrations.Runner) error {
				return r.MigrateTo(uint(v))
			})
		},
	}
}

func versionCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cfg, func(r *migrations.Runner) error {
				v, dirty, err := r.Version()
				if err != nil {
					return err
				}
				fmt.Printf("version %d (dirty: %v)\n", v, dirty)
				return nil
			})
		},
	}
}
