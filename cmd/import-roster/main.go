package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/config"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/database"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/logger"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/roster"
)

func main() {
	importFile := flag.String("file", "", "roster workbook to import (.xlsx)")
	exportFile := flag.String("export", "", "write current roster to this file (.xlsx)")
	templateFile := flag.String("template", "", "write a blank import template to this file (.xlsx)")
	flag.Parse()

	if *importFile == "" && *exportFile == "" && *templateFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -file roster.xlsx | -export roster.xlsx | -template template.xlsx\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, "console", "import-roster")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *templateFile != "" {
		data, err := roster.GenerateImportTemplate()
		if err != nil {
			log.Fatal("Failed to generate template", zap.Error(err))
		}
		if err := os.WriteFile(*templateFile, data, 0o644); err != nil {
			log.Fatal("Failed to write template", zap.Error(err))
		}
		log.Info("Template written", zap.String("path", *templateFile))
		if *importFile == "" && *exportFile == "" {
			return
		}
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := repository.NewPostgresStore(db)
	defer store.Close()

	ctx := context.Background()

	if *importFile != "" {
		data, err := os.ReadFile(*importFile)
		if err != nil {
			log.Fatal("Failed to read roster file", zap.Error(err))
		}

		registry := rooms.NewRegistry(cfg.Simulator.Floors)
		clk := clock.New(cfg.Simulator.Timezone, log)
		generator := narrative.NewClient(
			cfg.Narrative.BaseURL,
			cfg.Narrative.APIKey,
			time.Duration(cfg.Narrative.Timeout)*time.Second,
			log,
		)
		importer := roster.NewImporter(registry, generator, clk, log)

		var result *roster.ImportResult
		err = store.RunTick(ctx, func(ctx context.Context, r *repository.Repos) error {
			var err error
			result, err = importer.ImportWorkbook(ctx, r, data)
			return err
		})
		if err != nil {
			log.Fatal("Import failed", zap.Error(err))
		}

		fmt.Printf("Imported %d of %d rows (%d dependents, %d skipped)\n",
			result.Hired, result.Total, result.Dependents, result.SkippedCount)
		for _, s := range result.Skipped {
			fmt.Printf("  skipped: %s\n", s)
		}
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}

	if *exportFile != "" {
		var data []byte
		err = store.RunTick(ctx, func(ctx context.Context, r *repository.Repos) error {
			var err error
			data, err = roster.ExportWorkbook(ctx, r)
			return err
		})
		if err != nil {
			log.Fatal("Export failed", zap.Error(err))
		}
		if err := os.WriteFile(*exportFile, data, 0o644); err != nil {
			log.Fatal("Failed to write export", zap.Error(err))
		}
		log.Info("Roster exported", zap.String("path", *exportFile))
	}
}
