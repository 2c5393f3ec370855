package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/taskroute/pkg/config"
	"github.com/zen-systems/taskroute/pkg/events"
	"github.com/zen-systems/taskroute/pkg/extract"
	"github.com/zen-systems/taskroute/pkg/registry"
	"github.com/zen-systems/taskroute/pkg/router"
	"github.com/zen-systems/taskroute/pkg/schema"
	"github.com/zen-systems/taskroute/pkg/store"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskroute",
		Short: "Task router with transparent scoring and auditable decisions",
		Long: `Taskroute selects which compute/model instance should execute a task,
	based on extracted capability requirements, live instance state and a
	transparent scoring formula. Every decision is persisted and audited.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(overrideCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(instancesCmd())
	rootCmd.AddCommand(extractCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.Default(), nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	router *router.Router
}

func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan store: %w", err)
	}

	sinks := events.MultiSink{events.NewLogSink(logger)}
	if cfg.AuditDir != "" {
		audit, err := events.NewAuditSink(cfg.AuditDir)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open audit sink: %w", err)
		}
		sinks = append(sinks, audit)
	}

	reg := registry.NewFileRegistry(cfg.RegistryPath)
	r := router.New(reg, s, sinks, logger,
		router.WithFallbackDepth(cfg.FallbackDepth),
		router.WithWeights(*cfg.Weights),
		router.WithExtractor(extract.New(cfg.ExtraRules)))

	return &env{cfg: cfg, logger: logger, store: s, router: r}, nil
}

func (e *env) close() {
	e.store.Close()
	_ = e.logger.Sync()
}

func routeCmd() *cobra.Command {
	var desc string
	var minContext int

	cmd := &cobra.Command{
		Use:   "route [task-id] [title]",
		Short: "Route a task to the best available instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			spec := schema.TaskSpec{
				ID:               args[0],
				Title:            args[1],
				Description:      desc,
				MinContextTokens: minContext,
			}

			plan, err := e.router.Route(context.Background(), args[0], spec)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Routed %s to %s\n", args[0], plan.Selected)
			return printJSON(plan)
		},
	}

	cmd.Flags().StringVar(&desc, "desc", "", "task description")
	cmd.Flags().IntVar(&minContext, "min-context", 0, "minimum context window in tokens")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [task-id]",
		Short: "Re-check a task's plan against the live registry, rerouting if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			plan, err := e.store.LoadPlan(ctx, args[0])
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("no plan found for task %s", args[0])
			}

			current, ev, err := e.router.VerifyOrReroute(ctx, args[0], plan)
			if err != nil {
				return err
			}
			if ev != nil {
				fmt.Fprintf(os.Stderr, "Rerouted %s: %s -> %s (%s)\n", args[0], ev.From, ev.To, ev.Reason)
			} else {
				fmt.Fprintf(os.Stderr, "Plan verified: %s stays on %s\n", args[0], current.Selected)
			}
			return printJSON(current)
		},
	}
}

func overrideCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "override [task-id] [instance-id]",
		Short: "Manually force a task onto a specific instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			plan, err := e.store.LoadPlan(ctx, args[0])
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("no plan found for task %s", args[0])
			}

			newPlan, err := e.router.OverrideRoute(ctx, args[0], plan, args[1], actor)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Overrode %s: %s -> %s\n", args[0], plan.Selected, newPlan.Selected)
			return printJSON(newPlan)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "operator", "identity recorded for the override")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [task-id]",
		Short: "Show the current plan for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			plan, err := e.store.LoadPlan(context.Background(), args[0])
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("no plan found for task %s", args[0])
			}
			return printJSON(plan)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate routing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			stats, err := e.store.Stats(context.Background())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func instancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List instances visible in the current registry snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			entries, err := registry.NewFileRegistry(cfg.RegistryPath).Snapshot(context.Background())
			if err != nil {
				return err
			}

			profiles := registry.BuildProfiles(entries)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tLOCALITY\tCTX\tLATENCY\tTAGS")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%v\n",
					p.ID, p.State, p.Locality, p.ContextWindow, p.LatencyMillis, p.Tags)
			}
			return w.Flush()
		},
	}
}

func extractCmd() *cobra.Command {
	var desc string
	var minContext int

	cmd := &cobra.Command{
		Use:   "extract [title]",
		Short: "Show the requirements derived from a task description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			req := extract.New(cfg.ExtraRules).Extract(schema.TaskSpec{
				Title:            args[0],
				Description:      desc,
				MinContextTokens: minContext,
			})
			return printJSON(req)
		},
	}

	cmd.Flags().StringVar(&desc, "desc", "", "task description")
	cmd.Flags().IntVar(&minContext, "min-context", 0, "minimum context window in tokens")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
