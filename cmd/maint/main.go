package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"coparent/internal/clock"
	"coparent/internal/config"
	"coparent/internal/database"
	"coparent/internal/logging"
	"coparent/internal/security"
	"coparent/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "migrate":
		return withDB(ctx, cfg, func(db *database.DB) error { return nil })
	case "sweep":
		return withDB(ctx, cfg, func(db *database.DB) error {
			invitations := service.NewInvitationService(db, service.NewFamilyLocks(), clock.Real(), nil, nil, cfg.InvitationTTL, cfg.AppBaseURL)
			n, err := invitations.ExpireStale(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "expired %d invitations\n", n)
			return nil
		})
	case "export":
		return runExport(ctx, cfg, args[1:])
	case "token":
		return runToken(cfg, args[1:], stdout)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// withDB opens the configured database, brings the schema up to date and
// hands it to fn
func withDB(ctx context.Context, cfg *config.Config, fn func(db *database.DB) error) error {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	slog.Info("Migrations completed successfully", "type", cfg.DatabaseType)
	return fn(db)
}

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	familyID := flags.Int64("family-id", 0, "family to export (required)")
	output := flags.StringP("output", "o", "", "output file path (default: family_<id>_YYYYMMDD_HHMMSS.json)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *familyID <= 0 {
		flags.PrintDefaults()
		return errors.New("--family-id is required")
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("family_%d_%s.json", *familyID, time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return withDB(ctx, cfg, func(db *database.DB) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := service.NewBackupService(db).ExportToWriter(ctx, *familyID, f); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("Export complete", "family_id", *familyID, "path", path)
		return nil
	})
}

// runToken signs a bearer token with the configured secret, for local
// development against a server that has no identity provider in front
func runToken(cfg *config.Config, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	subject := flags.String("subject", "", "identity subject (required)")
	email := flags.String("email", "", "email claim")
	ttl := flags.Duration("ttl", time.Hour, "token lifetime")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *subject == "" {
		flags.PrintDefaults()
		return errors.New("--subject is required")
	}

	verifier := security.NewTokenVerifier(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenAudience)
	token, err := verifier.Sign(*subject, *email, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Coparent maintenance tool

Usage:
  maint migrate
  maint sweep
  maint export --family-id ID [--output FILE]
  maint token --subject SUB [--email EMAIL] [--ttl 1h]

Commands:
  migrate   apply pending schema migrations
  sweep     mark lapsed pending invitations as expired
  export    write one family's data as JSON
  token     sign a development bearer token
`)
}
