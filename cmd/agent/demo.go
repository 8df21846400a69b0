package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// demo is a canned run: a prompt, the tools it needs and the model to ask.
type demo struct {
	question string
	prompt   string
	model    string
	tools    []string
	hint     string
}

const demoRegion = "us-east-1"

var demos = map[string]demo{
	"aws": {
		question: "What is AWS?",
		prompt:   "What is AWS?",
		model:    "amazon.titan-text-express-v1",
		hint:     "The agent worked but hit a token limit. This is normal for the first run.",
	},
	"calculator": {
		question: "What is 25 * 4 + 10?",
		prompt:   "What is 25 * 4 + 10? Use the calculator tool to compute this.",
		model:    "amazon.nova-micro-v1:0",
		tools:    []string{"calculator"},
		hint:     "The agent worked but may have hit a token limit or tool execution issue.",
	},
	"files": {
		question: "List the files in the current working directory",
		prompt:   "List the files in the current working directory using the file_read tool",
		model:    "amazon.nova-micro-v1:0",
		tools:    []string{"calculator", "file_read"},
		hint:     "The agent worked but may have hit a token limit or tool execution issue.",
	},
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func demoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "demo {" + strings.Join(demoNames(), "|") + "}",
		Short:     "Run a canned prompt against Bedrock",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: demoNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := demos[args[0]]
			if !ok {
				return fmt.Errorf("unknown demo %q (available: %s)", args[0], strings.Join(demoNames(), ", "))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Asking: %s\n", d.question)
			return runPrompt(cmd.Context(), out, runOptions{
				configPath:  *configPath,
				prompt:      d.prompt,
				tools:       d.tools,
				toolsSet:    true,
				model:       d.model,
				provider:    "bedrock",
				region:      demoRegion,
				failureHint: d.hint,
			})
		},
	}
}
