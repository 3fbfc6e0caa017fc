package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/tempo/internal/config"
	"github.com/sadopc/tempo/internal/logging"
	"github.com/sadopc/tempo/internal/store"
	"github.com/sadopc/tempo/internal/tracker"
	"github.com/sadopc/tempo/internal/tui"
	"github.com/spf13/pflag"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "config file (default ~/.config/tempo/tempo.toml)")
	pflag.Parse()

	if *cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		*cfgPath = p
	}

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	s, err := openStore(cfg, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer s.Close()
	logger.Info("storage ready", "store", s.String())

	bridge := tui.NewBridge()
	t, err := tracker.New(context.Background(), s,
		tracker.WithLogger(logger),
		tracker.WithNotifier(bridge),
	)
	if err != nil {
		return err
	}
	defer t.Close()
	t.OnChange(bridge.Observe)

	app := tui.NewApp(t, bridge,
		tui.WithConfig(cfg, cfgPath),
		tui.WithStorageInfo(s),
		tui.WithLogger(logger),
	)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// openStore builds the configured primary store with a fallback. A folder
// store falls back to the database; the database falls back to memory so
// the session keeps working.
func openStore(cfg *config.Config, opts ...store.Option) (*store.Fallback, error) {
	if cfg.Backend == config.BackendFolder {
		dir, err := store.NewDir(cfg.DataFolder, opts...)
		if err != nil {
			return nil, err
		}
		db, err := store.New(cfg.DBPath, opts...)
		if err != nil {
			return nil, err
		}
		return store.NewFallback(dir, db, opts...), nil
	}

	db, err := store.New(cfg.DBPath, opts...)
	if err != nil {
		return nil, err
	}
	mem, err := store.NewMemory(opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store.NewFallback(db, mem, opts...), nil
}
