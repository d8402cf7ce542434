// ABOUTME: secureagent subcommands: chat, ask, reset, login, logout and whoami
// ABOUTME: One-shot commands print agent replies as flattened markdown

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/secure-agent/internal/agentclient"
	"github.com/2389/secure-agent/internal/dashboard"
	"github.com/2389/secure-agent/internal/tui"
)

func chatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			s.logger.Info("starting dashboard", "base_url", s.cfg.Agent.BaseURL, "reset_policy", s.policy)
			vm := dashboard.New(s.client,
				dashboard.WithResetPolicy(s.policy),
				dashboard.WithLogger(s.logger),
			)
			return runTUI(cmd.Context(), vm, s.identity)
		},
	}
}

func askCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Send one query and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return dashboard.ErrEmptyQuery
			}
			reply, err := s.client.QueryAgent(cmd.Context(), query)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderMarkdown(reply))
			return nil
		},
	}
}

func resetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the conversation on the agent service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			ack, err := s.client.ResetAgent(cmd.Context())
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack)
			return nil
		},
	}
}

func loginCmd(opts *options) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for later commands",
		Long:  "Store an access token in the token file. Without --token the token is read from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if token == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token from stdin: %w", err)
				}
				token = line
			}
			if err := s.identity.Login(token); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s\n", s.identity.Username())
			if !s.identity.IsAuthenticated() {
				fmt.Fprintln(out, "Warning: the stored token has already expired")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token (JWT)")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.identity.Logout(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Logged out")
			if env := s.cfg.Identity.TokenEnv; env != "" && os.Getenv(env) != "" {
				fmt.Fprintf(out, "%s is still set and will be used by new sessions\n", env)
			}
			return nil
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if !s.identity.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintln(out, s.identity.Username())
			return nil
		},
	}
}

// explain adds a next step to errors the user can fix.
func explain(err error) error {
	var unauthorized *agentclient.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return fmt.Errorf("%s (run `secureagent login`)", unauthorized.Message)
	}
	return err
}
