// ABOUTME: Entry point for the secure agent service
// ABOUTME: Serves the agent API, mints development tokens and checks health

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/secure-agent/internal/auth"
	"github.com/2389/secure-agent/internal/config"
	"github.com/2389/secure-agent/internal/logging"
	"github.com/2389/secure-agent/internal/server"
)

// Version is set at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: secureagent-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                        Start the agent service")
		fmt.Println("  token --user NAME [--role R] Mint a development token (HS256)")
		fmt.Println("  health                       Check service health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.ServerConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Println("    secure agent service")
	gray.Printf("    version: %s\n\n", version)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Responder: %s\n", cfg.LLM.Provider)
	if cfg.Auth.JWKSURL != "" {
		green.Print("    ▶ ")
		fmt.Printf("JWKS:      %s\n", cfg.Auth.JWKSURL)
	}
	fmt.Println()

	logger.Info("starting secure agent service",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"provider", cfg.LLM.Provider,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// roleFlags collects repeated --role values.
type roleFlags []string

func (r *roleFlags) String() string { return strings.Join(*r, ",") }

func (r *roleFlags) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "username for the token (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	var roles roleFlags
	fs.Var(&roles, "role", "client role to grant (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load(config.ServerConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured; tokens for a JWKS issuer must come from that issuer")
	}

	verifier, err := auth.NewJWTVerifier(auth.VerifierConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		ClientID: cfg.Auth.ClientID,
	})
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}

	token, err := verifier.Generate(*user, roles, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.ServerConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
