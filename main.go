package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"elite-trader/internal/config"
	"elite-trader/internal/db"
	"elite-trader/internal/eddb"
	"elite-trader/internal/engine"
	"elite-trader/internal/logger"

	"github.com/dustin/go-humanize"
)

var version = "dev"

const usage = `usage: elite-trader [search] [flags]
       elite-trader import [-dir data] [-download]
       elite-trader history [-n 10]`

func main() {
	cmd, args := "search", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "search":
		err = runSearch(ctx, args)
	case "import":
		err = runImport(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Main", err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the config file named by -config and lets explicitly set flags
// override it.
func loadConfig(fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *config.Config)) (*config.Config, error) {
	path := fs.String("config", "elite-trader.yaml", "YAML config file (optional)")
	flagCfg := config.Default()
	bind(fs, flagCfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	// Re-parse onto the loaded config so that only flags given on the command line win.
	override := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	override.String("config", "", "")
	bind(override, cfg)
	fs.Visit(func(f *flag.Flag) {
		override.Set(f.Name, f.Value.String())
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindDatabaseFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "database driver: sqlite or postgres")
	fs.StringVar(&cfg.Database.DSN, "db", cfg.Database.DSN, "database file (sqlite) or connection string (postgres)")
}

func bindSearchFlags(fs *flag.FlagSet, cfg *config.Config) {
	bindDatabaseFlags(fs, cfg)
	fs.StringVar(&cfg.From, "from", cfg.From, "starting station: SYSTEM/Station or a station name fragment")
	fs.StringVar(&cfg.To, "to", cfg.To, "destination station (optional)")
	fs.BoolVar(&cfg.Loop, "loop", cfg.Loop, "end the route where it starts")
	fs.IntVar(&cfg.Cap, "cap", cfg.Cap, "cargo capacity")
	fs.Float64Var(&cfg.LyPer, "ly", cfg.LyPer, "jump range in light years")
	fs.IntVar(&cfg.Hops, "hops", cfg.Hops, "trade legs per route")
	fs.IntVar(&cfg.MaxHops, "max-hops", cfg.MaxHops, "try routes of 1..N legs instead of -hops")
	fs.IntVar(&cfg.JumpsPer, "jumps-per", cfg.JumpsPer, "max jumps per leg")
	fs.StringVar(&cfg.PadSize, "pad", cfg.PadSize, "minimum landing pad: M or L")
	fs.BoolVar(&cfg.Planets, "planets", cfg.Planets, "allow planetary stations")
	fs.Var(&listFlag{dst: &cfg.Exclude}, "exclude", "comma separated commodities to skip (repeatable)")
	fs.Float64Var(&cfg.MinTime, "min-time", cfg.MinTime, "reject routes faster than this many seconds")
	fs.IntVar(&cfg.RunFor, "run-for", cfg.RunFor, "stop after N seconds once a route is found (0 = until Ctrl-C)")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "entries per lookup cache")
}

// listFlag is a comma separated string list. The first Set replaces the default and
// later ones append.
type listFlag struct {
	dst *[]string
	set bool
}

func (l *listFlag) String() string {
	if l == nil || l.dst == nil {
		return ""
	}
	return strings.Join(*l.dst, ",")
}

func (l *listFlag) Set(s string) error {
	if !l.set {
		*l.dst = nil
		l.set = true
	}
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*l.dst = append(*l.dst, name)
		}
	}
	return nil
}

func openStore(cfg *config.Config) (*db.DB, error) {
	return db.Open(cfg.Database.Driver, cfg.Database.DSN)
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	seed := fs.Uint64("seed", 0, "random seed (0 = random)")
	cfg, err := loadConfig(fs, args, bindSearchFlags)
	if err != nil {
		return err
	}
	if cfg.From == "" {
		return errors.New("-from is required")
	}
	logger.Banner(version)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}
	planner := engine.NewPlanner(store, engine.ParamsFromConfig(cfg), engine.NewCaches(cfg.CacheSize), rng)

	res, err := planner.Search(ctx, engine.SearchOptions{
		From:    cfg.From,
		To:      cfg.To,
		Loop:    cfg.Loop,
		Hops:    cfg.EffectiveHops(),
		MaxHops: cfg.MaxHops,
		RunFor:  cfg.RunDuration(),
		OnImprove: func(route *engine.Route, elapsed time.Duration, rate float64) {
			logger.Info("Route", fmt.Sprintf("After %ds: improve to (%d/s)", int(elapsed.Seconds()), int(rate)))
			fmt.Println(" " + route.String())
		},
	}, func(msg string) { logger.Info("Route", msg) })
	if err != nil {
		return err
	}

	logger.Section("Best route")
	fmt.Println(" " + res.Best.String())
	logger.Section("Search")
	logger.Stats("Candidates", humanize.Comma(int64(res.Candidates)))
	logger.Stats("Refinements", humanize.Comma(int64(res.Refinements)))
	logger.Stats("Elapsed", res.Elapsed.Round(time.Millisecond))
	for _, s := range planner.Caches().Stats() {
		logger.Stats("Cache "+s.Name, fmt.Sprintf("%d entries, %d hits, %d misses", s.Entries, s.Hits, s.Misses))
	}

	// The run context may already be cancelled by Ctrl-C; history is still written.
	runID := store.SaveRoute(context.WithoutCancel(ctx), res.Best, db.RunInfo{
		From:       res.Endpoints.Start.PrettyName(),
		To:         endName(res.Endpoints.End),
		Candidates: res.Candidates,
		Duration:   res.Elapsed,
		Params:     cfg,
	})
	if runID != "" {
		logger.Success("DB", "Saved run "+runID)
	}
	return nil
}

func endName(st *engine.Station) string {
	if st == nil {
		return ""
	}
	return st.PrettyName()
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", "data", "directory holding the dump files")
	download := fs.Bool("download", false, "download missing dump files")
	baseURL := fs.String("url", eddb.DefaultBaseURL, "dump download base URL")
	batch := fs.Int("batch", eddb.DefaultBatchSize, "rows per write transaction")
	cfg, err := loadConfig(fs, args, bindDatabaseFlags)
	if err != nil {
		return err
	}
	logger.Banner(version)

	src := ""
	if *download {
		src = *baseURL
	}
	if err := eddb.EnsureFiles(ctx, nil, *dir, src); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := eddb.NewImporter(store, *dir, *batch, func(msg string) { logger.Info("EDDB", msg) }).Run(ctx)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Success("EDDB", fmt.Sprintf("Import finished in %s", sum.Elapsed.Round(time.Millisecond)))
	logger.Section("Import")
	logger.Stats("Systems", humanize.Comma(int64(sum.Systems)))
	logger.Stats("Stations", humanize.Comma(int64(sum.Stations)))
	logger.Stats("Listings", humanize.Comma(int64(sum.Listings)))
	logger.Stats("Skipped stations", sum.MissingSystem+sum.DuplicateStations)
	logger.Stats("Skipped listings", sum.UnknownStation+sum.UnknownCommodity)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 10, "number of runs to show")
	cfg, err := loadConfig(fs, args, bindDatabaseFlags)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range store.RecentRoutes(ctx, *n) {
		logger.Section(fmt.Sprintf("%s  %s", r.CreatedAt, r.RunID))
		logger.Stats("From", r.From)
		if r.To != "" {
			logger.Stats("To", r.To)
		}
		logger.Stats("Gain", "+"+humanize.Comma(r.SumGain)+"cr")
		logger.Stats("Rate", fmt.Sprintf("%.1f cr/s", r.GainPerSecond))
		for _, leg := range r.Legs {
			fmt.Printf("   %s -> %s %s +%s\n", leg.From, leg.To, leg.Cargo, humanize.Comma(leg.Gain))
		}
	}
	return nil
}
