// Package main implements the refakt CLI: the thin, external-collaborator
// command surface spec.md §6 describes ("each refactor kind is a tool
// that accepts a JSON argument record... and returns either the plan
// (preview) or the execution report"). Command registration/global flags
// follow cmd/nerd/main.go's rootCmd + PersistentPreRunE shape (zap for
// console output, internal/logging for category file tracing); individual
// subcommands follow cmd_direct_actions.go's one-var-per-command pattern.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/refakt/refakt/internal/config"
	"github.com/refakt/refakt/internal/executor"
	"github.com/refakt/refakt/internal/logging"
	"github.com/refakt/refakt/internal/lspclient"
	"github.com/refakt/refakt/internal/model"
	"github.com/refakt/refakt/internal/moveservice"
	"github.com/refakt/refakt/internal/opqueue"
	"github.com/refakt/refakt/internal/pathresolver"
	"github.com/refakt/refakt/internal/planner"
	"github.com/refakt/refakt/internal/plugin"
	"github.com/refakt/refakt/internal/plugin/goplugin"
	"github.com/refakt/refakt/internal/plugin/rustplugin"
	"github.com/refakt/refakt/internal/plugin/tsplugin"
	"github.com/refakt/refakt/internal/refupdate"
	"github.com/refakt/refakt/internal/workflowplanner"
)

var (
	verbose   bool
	workspace string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "refakt",
	Short: "refakt - a cross-language refactoring plan/execute engine",
	Long: `refakt plans and applies structural refactors (rename, extract, inline,
move, prune, batch) across a multi-file project as reviewable EditPlan
artifacts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project root (default: current directory)")

	var dryRun bool
	var apply bool
	var kind string
	var paramsJSON string
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Produce a refactor plan without applying it",
		Long: `Plans one refactor intent ("kind", e.g. rename_symbol, rename_file,
move_module, extract_function, inline_variable, delete_file, batch) and
prints the resulting RefactorPlan as JSON. dryRun defaults to true: pass
--apply to execute the plan immediately after planning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}
			return runPlan(kind, params, apply || !dryRun)
		},
	}
	planCmd.Flags().StringVar(&kind, "kind", "", "intent kind (required)")
	planCmd.Flags().StringVar(&paramsJSON, "params", "{}", "intent params as a JSON object")
	planCmd.Flags().BoolVar(&dryRun, "dry-run", true, "preview only; pass --apply to execute")
	planCmd.Flags().BoolVar(&apply, "apply", false, "execute the plan immediately after planning")
	planCmd.MarkFlagRequired("kind")

	applyCmd := &cobra.Command{
		Use:   "apply <plan.json>",
		Short: "Execute a previously produced plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(args[0])
		},
	}

	var workflowParamsJSON string
	workflowCmd := &cobra.Command{
		Use:   "workflow <recipe>",
		Short: "Expand a workflow recipe into its ordered tool-call steps",
		Long: `Loads .refakt/recipes/<recipe>.yaml, substitutes {param}
placeholders from --params (leaving $steps.N... references unresolved for
the caller), and prints the resulting Workflow
as JSON (spec §4.9). This expands the recipe only; it does not execute
any step — run "refakt plan" once per step's tool/params to do that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if workflowParamsJSON != "" {
				if err := json.Unmarshal([]byte(workflowParamsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}
			return runWorkflow(args[0], params)
		},
	}
	workflowCmd.Flags().StringVar(&workflowParamsJSON, "params", "{}", "recipe params as a JSON object")

	rootCmd.AddCommand(planCmd, applyCmd, workflowCmd)
}

func projectRoot() string {
	if workspace != "" {
		abs, err := filepath.Abs(workspace)
		if err == nil {
			return abs
		}
		return workspace
	}
	wd, _ := os.Getwd()
	return wd
}

// buildRegistry discovers a plugin for every language this build carries
// (spec §4.4's registration-order discovery, extended by the rest of the
// pack's language surface beyond the distilled spec's single worked
// example).
func buildRegistry(root string) *plugin.Registry {
	registry := plugin.NewRegistry()
	registry.Register(goplugin.New(root))
	registry.Register(tsplugin.New(root))
	registry.Register(rustplugin.New(root))
	return registry
}

func buildPlanner(root string) *planner.Planner {
	registry := buildRegistry(root)
	resolver := pathresolver.New(root, registry)
	var oracle lspclient.Oracle = lspclient.NoOp{}
	refUpdater := refupdate.New(root, registry, resolver, oracle)
	mover := moveservice.New(root, registry, refUpdater)
	return planner.New(root, registry, resolver, refUpdater, mover, oracle)
}

func runPlan(kind string, params map[string]any, apply bool) error {
	root := projectRoot()
	p := buildPlanner(root)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	plan, err := p.Plan(ctx, model.Intent{Name: kind, Params: params})
	if plan != nil {
		// A failed preview (e.g. RequiresForce) still carries a plan with
		// its warnings and zero-resource-op payload; surface it before the
		// error so the caller can see what was refused and why.
		data, marshalErr := json.MarshalIndent(plan, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("marshal plan: %w", marshalErr)
		}
		fmt.Println(string(data))
	}
	if err != nil {
		return err
	}

	if !apply {
		return nil
	}
	return executePlan(root, plan)
}

func runApply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var plan model.RefactorPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return executePlan(projectRoot(), &plan)
}

func executePlan(root string, plan *model.RefactorPlan) error {
	queue := opqueue.New(root)
	defer queue.Close()

	exec := executor.New(root, queue)
	report, err := exec.Execute(plan)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runWorkflow(name string, params map[string]any) error {
	root := projectRoot()
	var registry *workflowplanner.Registry
	registry, err := config.LoadRecipes(root)
	if err != nil {
		return err
	}
	workflow, err := registry.Expand(model.Intent{Name: name, Params: params})
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
