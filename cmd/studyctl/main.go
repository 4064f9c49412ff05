// Command studyctl is the operator tool: migrations, level recomputation,
// read-only lookups and token issuing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/application/command"
	"github.com/safe1124/studyhub/internal/application/query"
	"github.com/safe1124/studyhub/internal/bootstrap"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/postgres"
	"github.com/safe1124/studyhub/internal/interface/http/handlers"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

func main() {
	if err := newRootCmd(loadEnv).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand runs against.
type env struct {
	cfg    *config.Config
	clock  timeutil.Clock
	stores *bootstrap.Stores
	log    *slog.Logger
}

func (e *env) Close() {
	if e.stores != nil {
		e.stores.Close()
	}
}

// loader builds the env. withStores=false skips opening the database.
type loader func(ctx context.Context, withStores bool) (*env, error)

func loadEnv(ctx context.Context, withStores bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	bootstrap.ApplyStudyConfig(cfg.Study)

	// Operator output goes to stdout; logs stay on stderr and quiet.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	e := &env{cfg: cfg, clock: timeutil.NewSystemClock(), log: log}
	if !withStores {
		return e, nil
	}

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	e.stores, err = bootstrap.OpenStores(ctx, dbCfg, e.clock, log)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newRootCmd(load loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "studyctl",
		Short:         "Study hub operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newRecalcLevelsCmd(load))
	root.AddCommand(newStatsCmd(load))
	root.AddCommand(newShopCmd(load))
	root.AddCommand(newTokenCmd(load))
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// migrate
// ══════════════════════════════════════════════════════════════════════════════

func newMigrateCmd(load loader) *cobra.Command {
	migrate := &cobra.Command{Use: "migrate", Short: "Database schema migrations"}

	withMigrator := func(ctx context.Context, fn func(*postgres.Migrator) error) error {
		e, err := load(ctx, false)
		if err != nil {
			return err
		}
		if e.cfg.Database.UseMemoryStore {
			return errors.New("migrations need DATABASE_URL")
		}
		conn, err := bootstrap.ConnectPostgres(ctx, e.cfg.Database, e.log)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(postgres.NewMigrator(conn))
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
				n, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
				status, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range status {
					applied := "pending"
					if s.IsApplied {
						applied = "applied " + s.AppliedAt.Format(time.RFC3339)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%03d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return nil
			})
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
				if err := m.Rollback(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "rolled back latest migration")
				return nil
			})
		},
	})
	return migrate
}

// ══════════════════════════════════════════════════════════════════════════════
// recalc-levels
// ══════════════════════════════════════════════════════════════════════════════

func newRecalcLevelsCmd(load loader) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "recalc-levels",
		Short: "Recompute stored levels from total minutes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			handler := command.NewRecalculateLevelsHandler(e.stores.Progress, e.clock, logger.Nop())
			res, err := handler.Handle(cmd.Context(), command.RecalculateLevelsCommand{DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range res.Changed {
				_, _ = fmt.Fprintf(out, "%s\t%d -> %d\n", c.UserID, c.OldLevel, c.NewLevel)
			}
			verb := "updated"
			if dryRun {
				verb = "would update"
			}
			_, _ = fmt.Fprintf(out, "scanned %d, %s %d\n", res.Scanned, verb, len(res.Changed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report stale levels without writing")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// stats / shop
// ══════════════════════════════════════════════════════════════════════════════

func newStatsCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Print a user's stats as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			s := e.stores
			stats, err := query.NewGetStatsHandler(s.Records, s.Progress, s.Wallets, s.Inventory, e.clock).
				Handle(cmd.Context(), query.GetStatsQuery{UserID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newShopCmd(load loader) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "List the shop catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			items, err := query.NewListShopHandler(e.stores.Inventory).
				Handle(cmd.Context(), query.ListShopQuery{UserID: userID})
			if err != nil {
				return err
			}
			for _, it := range items {
				owned := ""
				if it.Owned {
					owned = "\towned"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d%s\n", it.ItemID, it.Category, it.Name, it.Price, owned)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "mark items owned by this user")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// token
// ══════════════════════════════════════════════════════════════════════════════

func newTokenCmd(load loader) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <caller>",
		Short: "Issue an API bearer token for a caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load(cmd.Context(), false)
			if err != nil {
				return err
			}
			if e.cfg.HTTP.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := handlers.NewTokenManager(e.cfg.HTTP.JWTSecret, e.cfg.HTTP.JWTIssuer).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
