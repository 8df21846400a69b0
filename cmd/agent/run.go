package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dileep-u-k/llm-agent/internal/agent"
	"github.com/dileep-u-k/llm-agent/internal/config"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tools"
	"github.com/dileep-u-k/llm-agent/internal/tracing"
	"github.com/dileep-u-k/llm-agent/internal/version"
)

// newModelClient is swapped out in tests.
var newModelClient = llm.NewClient

// runOptions are the per-invocation overrides on top of the loaded config.
type runOptions struct {
	configPath    string
	prompt        string
	tools         []string
	toolsSet      bool
	model         string
	provider      string
	region        string
	maxIterations int
	// failureHint is printed after an error, as the demos do.
	failureHint string
}

func runCmd(configPath *string) *cobra.Command {
	var opts runOptions
	var toolList string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one prompt and print the final answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			if cmd.Flags().Changed("tools") {
				opts.tools = config.SplitList(toolList)
				opts.toolsSet = true
			}
			return runPrompt(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "prompt to send (required)")
	cmd.Flags().StringVarP(&toolList, "tools", "t", "", "comma separated builtin tools, empty for none (available: "+strings.Join(tools.BuiltinNames(), ", ")+")")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model id (overrides config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider: bedrock, openai, gemini or mistral (default: inferred from the model id)")
	cmd.Flags().StringVar(&opts.region, "region", "", "AWS region for Bedrock models")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "maximum model round trips (overrides config)")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// runPrompt executes one run and prints "Response: ..." or the error.
func runPrompt(ctx context.Context, out io.Writer, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, version.Get().Version)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	modelCfg := cfg.ModelFor(opts.model)
	if opts.provider != "" {
		modelCfg.Provider = opts.provider
		modelCfg.APIKey = cfg.APIKeys[llm.ResolveProvider(modelCfg)]
	}
	if opts.region != "" {
		modelCfg.Region = opts.region
	}

	toolNames := cfg.Tools.Enabled
	if opts.toolsSet {
		toolNames = opts.tools
	}
	reg, err := tools.NewBuiltinRegistry(toolNames, cfg.Tools.BuiltinConfig)
	if err != nil {
		return err
	}

	client, err := newModelClient(ctx, modelCfg, cfg.AWSCredentials)
	if err != nil {
		return fmt.Errorf("creating %s client: %w", llm.ResolveProvider(modelCfg), err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer closer.Close()
	}

	maxIterations := cfg.Agent.MaxIterations
	if opts.maxIterations > 0 {
		maxIterations = opts.maxIterations
	}
	runner := agent.New(client,
		agent.WithMaxIterations(maxIterations),
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithRateLimitBackoff(cfg.Agent.RateLimitDelay, cfg.Agent.MaxRateLimitDelay),
	)

	res, err := runner.RunRegistry(ctx, opts.prompt, reg, modelCfg)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		if errorsx.Is(err, errorsx.KindTokenLimitExceeded) {
			fmt.Fprintf(out, "The model %s hit its token limit; shorten the prompt or raise model.max_tokens.\n", modelCfg.Model)
		}
		if opts.failureHint != "" {
			fmt.Fprintln(out, opts.failureHint)
		}
		return reportedError{err}
	}

	fmt.Fprintf(out, "Response: %s\n", res.Text)
	fmt.Fprintf(out, "(%d model call(s), %d tool invocation(s), %d tokens)\n", res.ModelCalls, res.ToolInvocations, res.Usage.TotalTokens)
	return nil
}
