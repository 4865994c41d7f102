package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/catastropr/gridsearch/internal/arcgis"
	"github.com/catastropr/gridsearch/internal/cache/pagecache"
	"github.com/catastropr/gridsearch/internal/core/config"
	"github.com/catastropr/gridsearch/internal/core/httpclient"
	"github.com/catastropr/gridsearch/internal/core/observability"
	"github.com/catastropr/gridsearch/internal/core/server"
	"github.com/catastropr/gridsearch/internal/export"
	"github.com/catastropr/gridsearch/internal/fetch"
	"github.com/catastropr/gridsearch/internal/logger"
	"github.com/catastropr/gridsearch/internal/lookup"
	"github.com/catastropr/gridsearch/internal/ratelimit"
	"github.com/catastropr/gridsearch/internal/search"

	"github.com/catastropr/gridsearch/internal/core/model"
)

var Version = "dev"

const usage = `usage: gridsearch <command> [flags]

commands:
  radius     search properties within a radius of a point or parcel
  municipio  search properties within one municipality
  catastro   look up a single property by catastro number
  serve      run the HTTP search API
`

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "gridsearch",
	}, os.Stdout)
	log := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "radius":
		return runRadius(ctx, cfg, log, os.Args[2:])
	case "municipio":
		return runMunicipio(ctx, cfg, log, os.Args[2:])
	case "catastro":
		return runCatastro(ctx, cfg, log, os.Args[2:])
	case "serve":
		return runServe(ctx, cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// buildSearcher wires the full pipeline: registry client, rate limiter,
// optional page cache, fetcher, lookup resolver.
func buildSearcher(ctx context.Context, cfg config.Config, log *slog.Logger, gridSize int) (*search.Searcher, func(), error) {
	client, err := arcgis.NewClient(log, httpclient.NewOutbound(), arcgis.ClientConfig{
		BaseURL:   cfg.RegistryURL,
		Referer:   cfg.Referer,
		UserAgent: cfg.UserAgent,
		Cookie:    cfg.Cookie,
	})
	if err != nil {
		return nil, nil, err
	}

	limiter, err := ratelimit.New(cfg.CallsPerMinute)
	if err != nil {
		return nil, nil, err
	}

	var pageClient fetch.PageClient = client
	cleanup := func() {}
	if cfg.Cache.Enabled {
		store, serr := pagecache.NewStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, cfg.Cache.OpTimeout)
		if serr != nil {
			// Cache is an optimization; run without it.
			log.Warn("page cache unavailable, continuing without it", "err", serr)
		} else {
			pageClient = pagecache.Wrap(log, pageClient, store)
			cleanup = func() { _ = store.Close() }
		}
	}
	pageClient = fetch.Limited(pageClient, limiter)

	fetcher := fetch.New(log)
	fetcher.PageSize = cfg.PageSize
	fetcher.MaxPages = cfg.MaxPages
	fetcher.PageDelay = cfg.PageDelay
	fetcher.Progress = func(page, total int) {
		log.Info("progress", "page", page, "records", total)
	}

	resolver, err := lookup.New(log, pageClient, cfg.LookupCacheSize)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return search.New(log, pageClient, fetcher, resolver, gridSize), cleanup, nil
}

func runRadius(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("radius", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "center latitude")
	lon := fs.Float64("lon", 0, "center longitude")
	catastro := fs.String("catastro", "", "center catastro number")
	radius := fs.Float64("radius", 0, "search radius in miles (required)")
	gridSize := fs.Int("grid", cfg.GridSize, "grid size (NxN cells)")
	output := fs.String("output", "", "output file path (.csv or .json)")
	municipio := fs.String("municipio", "", "municipality exact match")
	minPrice := fs.Float64("min-price", 0, "minimum sale price")
	maxPrice := fs.Float64("max-price", 0, "maximum sale price")
	minCabida := fs.Float64("min-cabida", 0, "minimum land area (sq meters)")
	maxCabida := fs.Float64("max-cabida", 0, "maximum land area (sq meters)")
	minDate := fs.String("min-date", "", "minimum sale date (YYYY-MM-DD)")
	maxDate := fs.String("max-date", "", "maximum sale date (YYYY-MM-DD)")
	rateLimit := fs.Int("rate-limit", cfg.CallsPerMinute, "max registry calls per minute")
	_ = fs.Parse(args)

	cfg.CallsPerMinute = *rateLimit

	var center search.Center
	latSet, lonSet := flagSet(fs, "lat"), flagSet(fs, "lon")
	switch {
	case latSet && lonSet:
		center.Coord = &model.Coordinate{Lat: *lat, Lon: *lon}
	case *catastro != "":
		center.Catastro = *catastro
	default:
		fmt.Fprintln(os.Stderr, "radius: provide -lat/-lon or -catastro")
		return 2
	}

	params := map[string]any{}
	if *municipio != "" {
		params[model.FieldMunicipio] = *municipio
	}
	addRange(fs, params, "min-price", model.FieldSaleAmt+"_MIN", *minPrice)
	addRange(fs, params, "max-price", model.FieldSaleAmt+"_MAX", *maxPrice)
	addRange(fs, params, "min-cabida", model.FieldCabida+"_MIN", *minCabida)
	addRange(fs, params, "max-cabida", model.FieldCabida+"_MAX", *maxCabida)
	if *minDate != "" {
		params[model.FieldSaleDate+"_MIN"] = *minDate
	}
	if *maxDate != "" {
		params[model.FieldSaleDate+"_MAX"] = *maxDate
	}

	searcher, cleanup, err := buildSearcher(ctx, cfg, log, *gridSize)
	if err != nil {
		log.Error("setup failed", "err", err)
		return 1
	}
	defer cleanup()

	start := time.Now()
	res, err := searcher.GridRadius(ctx, center, *radius, model.FiltersFromParams(params))
	if err != nil {
		log.Error("search failed", "err", err)
		return 1
	}
	return finish(log, res, *output, start)
}

func runMunicipio(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("municipio", flag.ExitOnError)
	output := fs.String("output", "", "output file path (.csv or .json)")
	minPrice := fs.Float64("min-price", 0, "minimum sale price")
	maxPrice := fs.Float64("max-price", 0, "maximum sale price")
	minCabida := fs.Float64("min-cabida", 0, "minimum land area (sq meters)")
	maxCabida := fs.Float64("max-cabida", 0, "maximum land area (sq meters)")
	minDate := fs.String("min-date", "", "minimum sale date (YYYY-MM-DD)")
	maxDate := fs.String("max-date", "", "maximum sale date (YYYY-MM-DD)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "municipio: municipality name required")
		return 2
	}
	name := fs.Arg(0)

	params := map[string]any{}
	addRange(fs, params, "min-price", model.FieldSaleAmt+"_MIN", *minPrice)
	addRange(fs, params, "max-price", model.FieldSaleAmt+"_MAX", *maxPrice)
	addRange(fs, params, "min-cabida", model.FieldCabida+"_MIN", *minCabida)
	addRange(fs, params, "max-cabida", model.FieldCabida+"_MAX", *maxCabida)
	if *minDate != "" {
		params[model.FieldSaleDate+"_MIN"] = *minDate
	}
	if *maxDate != "" {
		params[model.FieldSaleDate+"_MAX"] = *maxDate
	}

	searcher, cleanup, err := buildSearcher(ctx, cfg, log, cfg.GridSize)
	if err != nil {
		log.Error("setup failed", "err", err)
		return 1
	}
	defer cleanup()

	start := time.Now()
	res, err := searcher.Municipio(ctx, name, model.FiltersFromParams(params))
	if err != nil {
		log.Error("search failed", "err", err)
		return 1
	}
	return finish(log, res, *output, start)
}

func runCatastro(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("catastro", flag.ExitOnError)
	output := fs.String("output", "", "output file path (.csv or .json)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "catastro: catastro number required")
		return 2
	}

	searcher, cleanup, err := buildSearcher(ctx, cfg, log, cfg.GridSize)
	if err != nil {
		log.Error("setup failed", "err", err)
		return 1
	}
	defer cleanup()

	start := time.Now()
	res, err := searcher.Catastro(ctx, fs.Arg(0))
	if err != nil {
		log.Error("lookup failed", "err", err)
		return 1
	}
	return finish(log, res, *output, start)
}

func runServe(ctx context.Context, cfg config.Config, log *slog.Logger) int {
	searcher, cleanup, err := buildSearcher(ctx, cfg, log, cfg.GridSize)
	if err != nil {
		log.Error("setup failed", "err", err)
		return 1
	}
	defer cleanup()

	log.Info("starting search API",
		"addr", cfg.Addr,
		"version", Version,
		"registry", cfg.RegistryURL)
	if err := server.Run(ctx, cfg, log, searcher); err != nil {
		log.Error("server failed", "err", err)
		return 1
	}
	return 0
}

func finish(log *slog.Logger, res *search.Result, output string, start time.Time) int {
	for _, adv := range res.Advisories {
		log.Warn("completeness advisory", "cell", adv.Cell, "msg", adv.Message)
	}
	if res.Cause != "" {
		log.Warn("empty result", "cause", res.Cause)
	}
	log.Info("done",
		"properties", len(res.Records),
		"elapsed", time.Since(start).Round(10*time.Millisecond).String())

	if output != "" {
		if err := export.WriteFile(output, res.Records); err != nil {
			log.Error("export failed", "path", output, "err", err)
			return 1
		}
		log.Info("results saved", "path", output)
	}
	return 0
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func addRange(fs *flag.FlagSet, params map[string]any, flagName, field string, v float64) {
	if flagSet(fs, flagName) {
		params[field] = v
	}
}
