// barsentry - automation detection for Beyond All Reason replays
//
// barsentry scores decoded replay documents for signs of scripted input and
// keeps a baseline of every analyzed player-game:
//
//	barsentry analyze <path>...   Analyze replay documents or directories
//	barsentry watch [path]...     Analyze new replays as they are written
//	barsentry baseline            Show population baseline statistics
//	barsentry suspects            List players by average suspicion
//	barsentry history <userId>    Show a player's games and flags
//	barsentry percentile <m> <v>  Rank a metric value against stored games
//	barsentry note <userId> <txt> Attach a note to a player
//	barsentry config <action>     Write or show configuration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"barsentry/internal/config"
	"barsentry/internal/logging"
	"barsentry/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "analyze":
		err = cmdAnalyze(ctx, args)
	case "watch":
		err = cmdWatch(ctx, args)
	case "baseline":
		err = cmdBaseline(ctx, args)
	case "suspects":
		err = cmdSuspects(ctx, args)
	case "history":
		err = cmdHistory(ctx, args)
	case "percentile":
		err = cmdPercentile(ctx, args)
	case "note":
		err = cmdNote(ctx, args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`barsentry - Replay Automation Detection

USAGE:
    barsentry <command> [options]

COMMANDS:
    analyze <path>...         Analyze replay documents (files or directories)
    watch [path]...           Watch directories and analyze new replays
    baseline                  Show population baseline statistics
    suspects                  List players ordered by average suspicion
    history <userId>          Show a player's analyzed games and flags
    percentile <metric> <v>   Percentile of a value among stored games
    note <userId> <text>      Attach a free-text note to a player
    config init|show          Write a default config file or print the active one
    help                      Show this help message

COMMON OPTIONS:
    -config <file>            Config file (TOML, YAML or JSON)
    -log-level <level>        debug, info, warn or error

ANALYZE OPTIONS:
    -force                    Re-analyze games that are already stored
    -dry-run                  Score without comparing to or updating the baseline
    -workers <n>              Concurrent analyses
    -json                     Print results as JSON
    -all                      Report every player, not only flagged ones

ENVIRONMENT:
    BARSENTRY_DATABASE_URL, BARSENTRY_STORAGE_DRIVER, BARSENTRY_LOG_LEVEL and
    other BARSENTRY_* variables override the config file. A .env file in the
    working directory is read first.`)
}

// commonFlags are shared by every command that touches configuration.
type commonFlags struct {
	configPath string
	logLevel   string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Config file (default: search ./config.* then the user config dir)")
	fs.StringVar(&cf.logLevel, "log-level", "", "Log level override")
	return cf
}

// env is the loaded configuration and the resources built from it.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
}

// loadEnv loads configuration and sets up logging. The store is not opened.
func loadEnv(cf *commonFlags) (*env, error) {
	path := cf.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cf.logLevel != "" {
		cfg.Logging.Level = cf.logLevel
	}

	logger, err := newLogger(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)

	for _, w := range cfg.Validate().Warnings() {
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func newLogger(lc *config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	lcfg := logging.DefaultConfig()
	lcfg.Level = level
	lcfg.Format = format
	lcfg.Output = lc.Output
	lcfg.FilePath = lc.FilePath
	lcfg.MaxSize = int64(lc.MaxSizeMB)
	lcfg.MaxBackups = lc.MaxBackups
	return logging.New(lcfg)
}

// openStore opens the configured baseline store.
func (e *env) openStore() error {
	sc := e.cfg.Storage
	st, err := store.Open(store.Options{
		Driver:         store.Driver(sc.Driver),
		Path:           sc.Path,
		DSN:            sc.DSN,
		BusyTimeout:    sc.BusyTimeout(),
		MaxConnections: sc.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	e.store = st
	e.logger.Debug("store opened", "driver", sc.Driver, "path", sc.Path, "dsn", sc.DSN)
	return nil
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("close store", "error", err)
		}
	}
	_ = e.logger.Close()
}

// setup adds the common flags to fs, parses args and loads configuration.
// The store is opened unless withStore is false.
func setup(fs *flag.FlagSet, args []string, withStore bool) (*env, error) {
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	e, err := loadEnv(cf)
	if err != nil {
		return nil, err
	}
	if !withStore {
		return e, nil
	}
	if err := e.openStore(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
