package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/gemini"
	"github.com/mtzanidakis/synedrio/internal/ipc"
	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/store"
	"github.com/mtzanidakis/synedrio/internal/telegram"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"github.com/mtzanidakis/synedrio/internal/vault"
	"github.com/mtzanidakis/synedrio/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("synedrio %s\n", version)
		return
	case "gateway":
		err = runGateway()
	case "ask":
		err = runAsk(os.Args[2:])
	case "agents":
		err = runAgents()
	case "vault":
		err = runVault(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: synedrio <command>

Commands:
  gateway    Start the council gateway service
  ask        Run one deliberation in-process and print the transcript
  agents     Print the agent catalogue
  vault      Manage encrypted secrets
  version    Print version
`)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads the config, installs the logger and opens the store. The
// caller closes the store.
func loadConfig() (*config.Config, *store.Store, *vault.Vault, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	db, err := store.New(cfg.Store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init store: %w", err)
	}

	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	}

	if cfg.Gemini.APIKey, err = vault.Resolve(v, db, cfg.Gemini.APIKey); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("gemini api key: %w", err)
	}
	if cfg.Telegram.Token, err = vault.Resolve(v, db, cfg.Telegram.Token); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("telegram token: %w", err)
	}
	return cfg, db, v, nil
}

// newCouncil builds the registry, roster, log and invoker shared by the
// gateway and ask.
func newCouncil(ctx context.Context, cfg *config.Config, db *store.Store) (*registry.Registry, *registry.Roster, *transcript.Log, *gemini.Invoker, error) {
	reg, err := registry.New(cfg.Agents, cfg.Gemini.Model)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init registry: %w", err)
	}
	if err := reg.Sync(db); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("sync agent registry: %w", err)
	}

	model, err := gemini.NewGoogleModel(ctx, cfg.Gemini)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init gemini: %w", err)
	}

	return reg, registry.NewRoster(reg), transcript.New(), gemini.NewInvoker(model, cfg.Gemini), nil
}

func runGateway() error {
	cfg, db, v, err := loadConfig()
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("starting synedrio gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := db.FailRunning(); err != nil {
		return fmt.Errorf("recover runs: %w", err)
	} else if n > 0 {
		slog.Warn("marked interrupted runs as abandoned", "count", n)
	}

	reg, roster, log, inv, err := newCouncil(ctx, cfg, db)
	if err != nil {
		return err
	}
	slog.Info("council loaded", "agents", reg.Len(), "synthesizer", reg.SynthesizerID())

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer client.Close()

	orch := council.New(reg, log, inv, client, db)

	ipcSrv := ipc.NewServer(orch, roster, log)
	if err := ipcSrv.Start(client); err != nil {
		return err
	}
	defer ipcSrv.Close()

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, orch, reg, roster, log)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				slog.Error("telegram bot error", "error", err)
			}
		}()
		slog.Info("telegram bot started")
	} else {
		slog.Warn("telegram token not set, bot disabled")
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, roster, log, cfg.Web, v, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	if orch.Busy() {
		slog.Warn("deliberation still running at shutdown", "run", orch.State().RunID)
	}
	return nil
}

func runAgents() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reg, err := registry.New(cfg.Agents, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	printAgents(os.Stdout, registry.NewRoster(reg).Statuses(), reg)
	return nil
}

func printAgents(out io.Writer, statuses []registry.AgentStatus, reg *registry.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tMODEL\tACTIVE\tSYNTHESIZER")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Role, reg.ResolveModel(s.ID), yesNo(s.Active), yesNo(s.Synthesizer))
	}
	_ = w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
