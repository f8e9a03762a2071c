// Command ssexport runs catalogue queries from the command line and exports
// the matching page images to date-stamped folders, without the HTTP server.
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

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/collection"
	"github.com/Hussein-Mohammed/ScriptSight/internal/export"
	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/logger"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/metrics"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	collections := flag.String("collections", "", "comma-separated collection names (default: all)")
	implement := flag.String("implement", "", "comma-separated writing implements to select")
	orientation := flag.String("orientation", "", "comma-separated orientations to select")
	colour := flag.String("colour", "", "comma-separated colours to select")
	minScore := flag.Float64("min-score", 0, "minimum region confidence in [0,1]")
	minArea := flag.Float64("min-area", 0, "minimum region area as a fraction of the page's largest region")
	noText := flag.Bool("no-text", false, "select pages with no detected text instead")
	outputDir := flag.String("output", "", "override export output directory")
	noLedger := flag.Bool("no-ledger", false, "skip recording runs in the Postgres ledger")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Export.OutputDir = *outputDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := collection.NewRouter(cfg.Catalogue)
	if err != nil {
		slog.Error("failed to load catalogues", "error", err)
		os.Exit(1)
	}

	var ledger *export.Ledger
	if !*noLedger {
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, export ledger disabled", "error", err)
		} else {
			defer pgClient.Close()
			if ledger, err = export.NewLedger(ctx, pgClient); err != nil {
				slog.Error("failed to initialise export ledger", "error", err)
				os.Exit(1)
			}
		}
	}

	names := splitList(*collections)
	if len(names) == 0 {
		for _, info := range router.Collections() {
			names = append(names, info.Name)
		}
	}

	evaluator := query.NewEvaluator(slog.Default())
	exporter := export.NewExporter(cfg.Export, ledger, m, slog.Default())

	failures := 0
	for _, name := range names {
		eng, err := router.Get(name)
		if err != nil {
			slog.Error("unknown collection", "collection", name, "error", err)
			failures++
			continue
		}

		plan := buildPlan(name, *implement, *orientation, *colour, *minScore, *minArea, *noText)
		result, err := evaluator.Evaluate(ctx, eng, plan)
		if err != nil {
			slog.Error("query failed", "collection", name, "error", err)
			failures++
			continue
		}
		slog.Info("query evaluated", "collection", name, "query", plan.Describe(), "hits", result.TotalHits)
		if result.TotalHits == 0 {
			continue
		}

		run, err := exporter.Export(ctx, plan, result)
		if err != nil {
			slog.Error("export failed", "collection", name, "error", err)
			failures++
			continue
		}
		fmt.Printf("%s: %d pages -> %s (%d skipped)\n", name, run.PagesCopied, run.Folder, run.PagesSkipped)
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func buildPlan(name, implement, orientation, colour string, minScore, minArea float64, noText bool) *query.Plan {
	plan := &query.Plan{
		Collection:   name,
		MinScore:     minScore,
		MinAreaRatio: minArea,
		NoText:       noText,
	}
	for _, c := range []struct {
		attribute string
		raw       string
	}{
		{catalogue.AttrColour, colour},
		{catalogue.AttrImplement, implement},
		{catalogue.AttrOrientation, orientation},
	} {
		if values := splitList(c.raw); len(values) > 0 {
			plan.Criteria = append(plan.Criteria, query.Criterion{Attribute: c.attribute, Values: values})
		}
	}
	return plan
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
