package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"promai/internal/config"
	"promai/internal/tui"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Resolve(o.configPath, o.envFile)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var conversation string
	cmd := &cobra.Command{
		Use:   "promai [model-path]",
		Short: "Chat with a local language model",
		Long: "promai loads a local GGUF model (or a zip holding one) and opens a terminal chat window.\n" +
			"Conversations are kept as JSON files and repaired automatically when damaged.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			model := cfg.DefaultModel
			if len(args) == 1 {
				model = args[0]
			}
			if model == "" {
				model, err = pickModel(a)
				if err != nil && !errors.Is(err, errNoModels) {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.Run(ctx, a.ctl, tui.Options{ModelPath: model, ConversationID: conversation})
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("config file (yaml, json or toml; default %s)", config.DefaultPath))
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with PROMAI_* overrides")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "conversation id to open")

	cmd.AddCommand(
		newAskCmd(opts),
		newProbeCmd(opts),
		newModelsCmd(opts),
		newConversationsCmd(opts),
	)
	return cmd
}

// commandContext returns the command context, or Background for commands
// executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
