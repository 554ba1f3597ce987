// Package main provides the sessionhub CLI: an HTTP bridge to AI coding
// CLIs plus tools to import and browse their conversation history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sessionhub/internal/bridge"
	_ "sessionhub/internal/claude"
	_ "sessionhub/internal/codex"
	"sessionhub/internal/config"
	"sessionhub/internal/gateway"
	_ "sessionhub/internal/gemini"
	"sessionhub/internal/history"
	"sessionhub/internal/logging"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
	"sessionhub/internal/server"
	"sessionhub/internal/store"
)

var version = "dev"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	tool       string
	logLevel   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "sessionhub",
		Short:         "Bridge AI coding CLIs over HTTP and browse their conversation history",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/sessionhub/config.yaml)")
	flags.StringVar(&opts.tool, "tool", "", "AI tool: claude, codex or gemini (env: SESSIONHUB_TOOL, default: claude)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error or off")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "shorthand for --log-level debug")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newActiveCmd(opts))
	cmd.AddCommand(newAbortCmd(opts))
	cmd.AddCommand(newToolsCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sessionhub: %v\n", err)
		os.Exit(1)
	}
}

// app is the configuration and logger resolved for one command run.
type app struct {
	cfg config.Config
	log *logging.Logger
}

func (o *rootOptions) load(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: logging.New(level, cmd.ErrOrStderr())}, nil
}

// toolChoice returns the tool from the flag, the environment or the default.
func (o *rootOptions) toolChoice() (model.AiTool, error) {
	name := o.tool
	if name == "" {
		name = os.Getenv("SESSIONHUB_TOOL")
	}
	if name == "" {
		return model.ToolClaude, nil
	}
	return model.ParseTool(name)
}

func (a *app) newBridge() *bridge.Bridge {
	return bridge.New(registry.New(), bridge.Options{
		Executables: a.cfg.Executables(),
		Buffer:      a.cfg.StreamBuffer,
		AbortGrace:  a.cfg.AbortGrace,
		Logger:      a.log.With("component", "bridge"),
	})
}

func (a *app) newImporter(sink history.Sink) *history.Importer {
	return history.NewImporter(sink, history.Options{
		Homes:   a.cfg.Homes(),
		Workers: a.cfg.ImportWorkers,
		Logger:  a.log.With("component", "importer"),
	})
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func (a *app) serverURL(flag string) string {
	if flag != "" {
		return flag
	}
	return "http://" + a.cfg.Addr
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and streaming gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Addr = addr
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(
				a.newBridge(),
				gateway.New(a.cfg.HeartbeatInterval, a.log.With("component", "gateway")),
				a.newImporter(st),
				st,
				a.log.With("component", "server"),
			)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config addr)")
	return cmd
}
