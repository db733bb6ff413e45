// Package cli implements amsctl, the operator command line for AMS.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ams/internal/app"
	"github.com/odyssey-erp/ams/internal/auth"
	"github.com/odyssey-erp/ams/internal/platform/db"
	"github.com/odyssey-erp/ams/internal/rbac"
)

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// Deps lets tests replace the infrastructure behind each command.
type Deps struct {
	Config   func() (*app.Config, error)
	Migrator func(cfg *app.Config, logger *slog.Logger) (Migrator, error)
	Jobs     func(cfg *app.Config) *JobsCLI
	Now      func() time.Time
}

// DefaultDeps connects to the services named by the environment.
func DefaultDeps() Deps {
	return Deps{
		Config: app.LoadConfig,
		Migrator: func(cfg *app.Config, logger *slog.Logger) (Migrator, error) {
			return db.NewMigrator(cfg.PGDSN, logger)
		},
		Jobs: func(cfg *app.Config) *JobsCLI {
			return NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		},
		Now: time.Now,
	}
}

// NewRootCommand builds the amsctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "amsctl",
		Short:         "Operator tooling for the account management service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(deps), newJobsCommand(deps), newTokenCommand(deps))
	return root
}

// Execute runs amsctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(DefaultDeps()).ExecuteContext(ctx)
}

func newMigrateCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	withMigrator := func(c *cobra.Command, fn func(Migrator) error) error {
		cfg, err := deps.Config()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		m, err := deps.Migrator(cfg, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withMigrator(c, func(m Migrator) error { return m.Up() })
		},
	}
	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, one step by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withMigrator(c, func(m Migrator) error { return m.Down(steps) })
		},
	}
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withMigrator(c, func(m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}
	cmd.AddCommand(up, down, version)
	return cmd
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	var today string
	trigger := &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue a job immediately",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{JobOverdueScan, JobLedgerIntegrity},
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			jobsCLI := deps.Jobs(cfg)
			defer jobsCLI.Close()
			info, err := jobsCLI.Trigger(c.Context(), args[0], today)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().StringVar(&today, "today", "", "scan date for overdue-scan (YYYY-MM-DD, default today)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print queue depth as JSON",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			jobsCLI := deps.Jobs(cfg)
			defer jobsCLI.Close()
			out, err := jobsCLI.InspectQueues()
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), out)
		},
	}
	cmd.AddCommand(trigger, stats)
	return cmd
}

func newTokenCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Developer bearer tokens"}

	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a signed bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := deps.Config()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token mint is disabled when APP_ENV=production")
			}
			parsed, ok := rbac.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				ttl = cfg.JWTTTL
			}
			tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, ttl)
			if deps.Now != nil {
				tokens.WithNow(deps.Now)
			}
			token, expires, err := tokens.Issue(userID, parsed)
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), map[string]any{
				"token":      token,
				"user_id":    userID,
				"role":       parsed,
				"expires_at": expires.UTC().Format(time.RFC3339),
			})
		},
	}
	mint.Flags().Int64Var(&userID, "user", 0, "user id carried by the token")
	mint.Flags().StringVar(&role, "role", string(rbac.RoleAdmin), "admin, accountant, manager or customer")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TTL)")
	_ = mint.MarkFlagRequired("user")
	cmd.AddCommand(mint)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
