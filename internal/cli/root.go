// ABOUTME: cobra root command for the secureagent terminal client
// ABOUTME: Loads client config, builds the identity source and agent client shared by subcommands

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/2389/secure-agent/internal/agentclient"
	"github.com/2389/secure-agent/internal/config"
	"github.com/2389/secure-agent/internal/dashboard"
	"github.com/2389/secure-agent/internal/identity"
	"github.com/2389/secure-agent/internal/logging"
	"github.com/2389/secure-agent/internal/tui"
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}

var runTUI = func(ctx context.Context, vm *dashboard.ViewModel, id identity.Provider) error {
	return tui.Run(ctx, vm, id)
}

type options struct {
	configPath string
	baseURL    string
	logLevel   string
}

// NewRoot builds the command tree. Running it without a subcommand opens chat.
func NewRoot() *cobra.Command {
	opts := &options{}
	chat := chatCmd(opts)

	root := &cobra.Command{
		Use:           "secureagent",
		Short:         "Terminal client for the secure agent service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          chat.RunE,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "client config file (default "+config.ClientConfigPath()+")")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "agent service URL, overrides agent.base_url")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		chat,
		askCmd(opts),
		resetCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
	)
	return root
}

// session is the wiring shared by every subcommand.
type session struct {
	cfg      *config.ClientConfig
	identity *identity.TokenSource
	client   *agentclient.Client
	policy   dashboard.ResetPolicy
	logger   *slog.Logger
	logFile  *os.File
}

// openSession loads config and builds the client. With toFile set, logs go
// to the configured log file instead of stderr.
func openSession(opts *options, stderr io.Writer, toFile bool) (*session, error) {
	path := opts.configPath
	if path == "" {
		path = config.ClientConfigPath()
	}
	cfg, err := config.LoadClient(path)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.Agent.BaseURL = opts.baseURL
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	policy, err := dashboard.ParseResetPolicy(cfg.Client.ResetPolicy)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, policy: policy}

	out := stderr
	if toFile {
		f, err := openLogFile(cfg.Client.LogFile)
		if err != nil {
			return nil, err
		}
		s.logFile = f
		out = f
	}
	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	s.logger = logging.New(level, cfg.Logging.Format, out)

	s.identity = identity.NewTokenSource(cfg.Identity.TokenEnv, cfg.Identity.TokenFile)
	s.client = agentclient.New(cfg.Agent.BaseURL, s.identity,
		agentclient.WithTimeout(cfg.Agent.Timeout),
		agentclient.WithLogger(s.logger),
	)
	return s, nil
}

func (s *session) Close() error {
	if s.logFile == nil {
		return nil
	}
	return s.logFile.Close()
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
