package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/internal/reporter"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/action"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/flowbuilder"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner/flowlocalrunner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flowstore"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/varsource"
)

var (
	runVars       []string
	runTrigger    string
	runShowOutput bool
	runNoHistory  bool
	runEnvPrefix  string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "flow variable override as name=value (repeatable)")
	runCmd.Flags().StringSlice("report", []string{"console"}, "report outputs to produce (format[:path]); formats: console, json, junit")
	runCmd.Flags().Int("max-parallel", 0, "maximum concurrent node invocations (0 means number of CPUs)")
	runCmd.Flags().StringVar(&runTrigger, "trigger", "", "JSON object passed to the start node")
	runCmd.Flags().BoolVar(&runShowOutput, "show-output", false, "print node outputs in the console report")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not use the store for variables, secrets or run history")
	runCmd.Flags().StringVar(&runEnvPrefix, "env-prefix", "", "only expose environment variables with this prefix to {{env.*}}")
	_ = viper.BindPFlag(keyReport, runCmd.Flags().Lookup("report"))
	_ = viper.BindPFlag(keyMaxParallel, runCmd.Flags().Lookup("max-parallel"))
}

var runCmd = &cobra.Command{
	Use:   "run <flow-file>",
	Short: "Run a flow document",
	Long: `Run a flow document (JSON, or YAML for .yaml/.yml files). The process exits
non-zero when the run does not succeed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runFlow(ctx, cmd, args[0])
	},
}

func flowNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func loadFlow(path string) (mflow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mflow.Flow{}, err
	}
	return mflow.Load(data, mflow.FormatFromPath(path))
}

func runFlow(ctx context.Context, cmd *cobra.Command, path string) error {
	logger := newLogger()

	flow, err := loadFlow(path)
	if err != nil {
		return err
	}
	builder := flowbuilder.New(action.NewDefaultRegistry(), logger)
	nodes, startID, err := builder.BuildNodes(flow)
	if err != nil {
		return err
	}

	cliVars, err := parseVars(runVars)
	if err != nil {
		return err
	}
	var trigger map[string]any
	if runTrigger != "" {
		if err := json.Unmarshal([]byte(runTrigger), &trigger); err != nil {
			return fmt.Errorf("invalid --trigger: %w", err)
		}
	}

	flowName := flowNameFromPath(path)
	vars := make(map[string]any)
	secrets := varsource.Empty

	var store *flowstore.Store
	if !runNoHistory {
		store, err = openStore(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stored, err := store.Variables(ctx, flowName)
		if err != nil {
			return err
		}
		for k, v := range stored {
			vars[k] = v
		}
		if provider, err := store.SecretProvider(ctx); err == nil {
			secrets = provider
		} else {
			logger.DebugContext(ctx, "secrets unavailable", slog.Any("error", err))
		}
	}
	for k, v := range cliVars {
		vars[k] = v
	}

	specs, err := reporter.ParseReportSpecs(viper.GetStringSlice(keyReport))
	if err != nil {
		return err
	}
	reports, err := reporter.NewReporterGroup(specs, reporter.ReporterOptions{
		Out:        cmd.OutOrStdout(),
		ShowOutput: runShowOutput,
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(flow.Nodes))
	for _, n := range flow.Nodes {
		names = append(names, n.DisplayName())
	}
	reports.HandleFlowStart(reporter.FlowStartInfo{FlowName: flowName, TotalNodes: len(flow.Nodes), NodeNames: names})

	r := flowlocalrunner.CreateFlowRunner(idwrap.NewNow(), flow, nodes, startID, flowlocalrunner.Options{
		Logger:      logger,
		MaxParallel: viper.GetInt(keyMaxParallel),
		StatusFunc: func(status runner.FlowNodeStatus) {
			reports.HandleNodeStatus(reporter.NodeStatusEvent{FlowName: flowName, Status: status})
		},
		Vars:    vars,
		Env:     varsource.OSEnv{Prefix: runEnvPrefix},
		Secrets: secrets,
	})

	outcome, err := r.Run(ctx, trigger)
	if err != nil {
		return err
	}

	if store != nil {
		// The run context may already be cancelled; history is still written.
		if err := store.SaveRun(context.WithoutCancel(ctx), flowName, outcome); err != nil {
			logger.ErrorContext(ctx, "failed to save run", slog.Any("error", err))
		}
	}

	reports.HandleFlowResult(reporter.BuildFlowRunResult(flowName, outcome, runShowOutput))
	if err := reports.Flush(); err != nil {
		return err
	}

	if outcome.Status != runner.FlowStatusSucceeded {
		return &exitError{code: 1, msg: fmt.Sprintf("flow %s %s (failed nodes: %s)",
			flowName, strings.ToLower(outcome.Status.String()), strings.Join(outcome.FailedNodeIDs, ", "))}
	}
	return nil
}
