package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"barsentry/internal/config"
	"barsentry/internal/store"
)

func cmdBaseline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("baseline", flag.ExitOnError)
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.store.BaselineStats(ctx)
	if err != nil {
		return err
	}
	counts, err := e.store.Counts(ctx)
	if err != nil {
		return err
	}
	status, err := e.store.MigrationStatus()
	if err != nil {
		return err
	}

	fmt.Println("=== Baseline ===")
	fmt.Printf("Store:          %s (schema v%d/%d)\n", e.store.Driver(), status.CurrentVersion, status.LatestVersion)
	fmt.Printf("Players:        %d\n", counts.Players)
	fmt.Printf("Games:          %d\n", counts.Games)
	fmt.Printf("Player-games:   %d\n", counts.GamePlayers)
	fmt.Printf("Flags:          %d\n", counts.Flags)
	fmt.Println()
	fmt.Printf("Avg APM:        %.1f\n", b.AvgAPM)
	fmt.Printf("Avg <=33ms:     %.2f%%\n", b.AvgUltraFastPct)
	fmt.Printf("Avg <=50ms:     %.2f%%\n", b.AvgVeryFastPct)
	fmt.Printf("Avg <=100ms:    %.2f%%\n", b.AvgFastPct)
	fmt.Printf("Avg CV:         %.3f\n", b.AvgCV)
	fmt.Printf("Avg top bucket: %.2f%%\n", b.AvgTopIntervalPct)
	if b.SampleSize <= 10 {
		fmt.Println()
		fmt.Println("Baseline has too few samples; comparative checks are skipped.")
	}
	return nil
}

func cmdSuspects(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("suspects", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of players to list")
	asJSON := fs.Bool("json", false, "Print as JSON")
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	suspects, err := e.store.SuspiciousPlayers(ctx, *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(suspects)
	}
	if len(suspects) == 0 {
		fmt.Println("No flagged players.")
		return nil
	}

	fmt.Printf("%-10s %-24s %6s %6s %9s %5s %5s\n", "USER", "NAME", "GAMES", "FLAGS", "AVG SCORE", "CRIT", "HIGH")
	for _, s := range suspects {
		fmt.Printf("%-10d %-24s %6d %6d %9.1f %5d %5d\n",
			s.UserID, truncate(s.Name, 24), s.TotalGames, s.TotalFlags, s.AvgSuspicionScore, s.CriticalFlags, s.HighFlags)
		if s.Notes != "" {
			fmt.Printf("           note: %s\n", s.Notes)
		}
	}
	return nil
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	flagLimit := fs.Int("flags", 20, "Number of recent flags to show")
	asJSON := fs.Bool("json", false, "Print as JSON")
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: barsentry history [-flags n] <userId>")
	}
	userID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", fs.Arg(0))
	}

	player, err := e.store.GetPlayer(ctx, userID)
	if err != nil {
		return err
	}
	if player == nil {
		return fmt.Errorf("%w: %d", store.ErrPlayerNotFound, userID)
	}
	history, err := e.store.PlayerHistory(ctx, userID)
	if err != nil {
		return err
	}
	flags, err := e.store.PlayerFlags(ctx, userID, *flagLimit)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(struct {
			Player  *store.PlayerSummary `json:"player"`
			History []store.HistoryEntry `json:"history"`
			Flags   []store.FlagRecord   `json:"flags"`
		}{player, history, flags})
	}

	fmt.Printf("=== %s (%d) ===\n", player.Name, player.UserID)
	fmt.Printf("Games: %d  Flags: %d  Avg score: %.1f\n", player.TotalGames, player.TotalFlags, player.AvgSuspicionScore)
	fmt.Printf("Seen:  %s .. %s\n", player.FirstSeen.Format("2006-01-02"), player.LastSeen.Format("2006-01-02"))
	if player.Notes != "" {
		fmt.Printf("Note:  %s\n", player.Notes)
	}
	fmt.Println()

	for _, h := range history {
		fmt.Printf("%-36s %-24s APM %6.1f  CV %.3f  top %4dms %5.1f%%  score %d\n",
			h.GameID, truncate(h.MapName, 24), h.APM, h.CoeffVariation, h.TopIntervalMs, h.TopIntervalPct, h.SuspicionScore)
	}
	if len(flags) > 0 {
		fmt.Println()
		fmt.Println("Recent flags:")
		for _, f := range flags {
			fmt.Printf("  %-8s %-12s %s  (%s)\n", f.Severity, f.Category, f.Message, f.GameID)
		}
	}
	return nil
}

func cmdPercentile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("percentile", flag.ExitOnError)
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if fs.NArg() != 2 {
		names := make([]string, 0, len(store.Metrics()))
		for _, m := range store.Metrics() {
			names = append(names, string(m))
		}
		return fmt.Errorf("usage: barsentry percentile <metric> <value> (metrics: %s)", strings.Join(names, ", "))
	}
	value, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", fs.Arg(1))
	}

	pct, err := e.store.MetricPercentile(ctx, store.Metric(fs.Arg(0)), value)
	if err != nil {
		return err
	}
	fmt.Printf("%s %g is above %.1f%% of stored player-games\n", fs.Arg(0), value, pct)
	return nil
}

func cmdNote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("note", flag.ExitOnError)
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: barsentry note <userId> <text>")
	}
	userID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", fs.Arg(0))
	}
	if err := e.store.SetPlayerNote(ctx, userID, strings.Join(fs.Args()[1:], " ")); err != nil {
		return err
	}
	fmt.Printf("Note saved for %d\n", userID)
	return nil
}

func cmdConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: barsentry config init [path] | show")
	}

	switch args[0] {
	case "init":
		path := config.ConfigPath()
		if len(args) > 1 {
			path = args[1]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
		if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil

	case "show":
		fs := flag.NewFlagSet("config show", flag.ExitOnError)
		e, err := setup(fs, args[1:], false)
		if err != nil {
			return err
		}
		defer e.Close()

		shown := e.cfg.Clone()
		if shown.Storage.DSN != "" {
			shown.Storage.DSN = "[REDACTED]"
		}
		return printJSON(shown)

	default:
		return fmt.Errorf("unknown config action: %s", args[0])
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
