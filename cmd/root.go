// Package cmd wires the command line interface to the ingestion pipeline.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/justmedia/kodisync/internal/catalog"
	"github.com/justmedia/kodisync/internal/config"
	"github.com/justmedia/kodisync/internal/ingest"
	"github.com/justmedia/kodisync/internal/kodik"
	"github.com/justmedia/kodisync/internal/translations"
)

const (
	sourceName = "Kodik"
	sourceSlug = "kodik"
)

// CLI represents the complete command structure for the kodisync application
type CLI struct {
	// Global flags
	LogLevel string `help:"Log level (debug, info, warn, error); overrides the loglevel config key"`
	Database string `help:"Path to SQLite database file; overrides the database.dbfile config key"`

	Sync         SyncCmd         `cmd:"" help:"Sync media items from the Kodik /list endpoint"`
	Translations TranslationsCmd `cmd:"" help:"Manage translations and per-translation links"`
}

// SyncCmd represents the sync command
type SyncCmd struct {
	LimitPages       int    `help:"Limit the number of API pages to process (0 = no limit)"`
	StartPageLink    string `help:"Resume from a specific 'next_page' URL of a previous run"`
	TargetPage       int    `help:"Fetch pages sequentially but only start processing from this page number"`
	ItemsPerPage     int    `help:"Number of items per API page (1-100)" default:"50"`
	Types            string `help:"Comma-separated list of media types to fetch"`
	Year             int    `help:"Filter by release year"`
	SortBy           string `help:"Field to sort results by" default:"updated_at" enum:"updated_at,created_at,year,kinopoisk_rating,imdb_rating,shikimori_rating"`
	SortDirection    string `help:"Sort direction" default:"desc" enum:"asc,desc"`
	WithMaterialData bool   `help:"Request additional material data (genres, countries, description, poster)" default:"true" negatable:""`
	FillEmptyFields  bool   `help:"Fill empty fields on existing items even if API data is not newer"`
}

// TranslationsCmd represents the translations command and its subcommands
type TranslationsCmd struct {
	Populate PopulateCmd `cmd:"" help:"Populate the translation table from the /translations/v2 endpoint"`
	Update   UpdateCmd   `cmd:"" help:"Update seasons, episodes and per-translation links for media items"`
}

// PopulateCmd represents the translations populate command
type PopulateCmd struct {
	Clear bool `help:"Clear existing translations before populating"`
}

// UpdateCmd represents the translations update command
type UpdateCmd struct {
	ID                  []int64 `help:"Media item IDs to update (repeatable)"`
	All                 bool    `help:"Update all media items in the database"`
	Limit               int     `help:"Limit the number of items processed when using --all"`
	SkipRecentlyUpdated int     `placeholder:"HOURS" help:"Skip items whose source metadata was updated within the last HOURS hours"`
	Cleanup             bool    `help:"Remove stale links for processed items after updating"`
}

// Execute runs the Kong-based CLI
func Execute() {
	config.InitConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("kodisync"),
		kong.Description("Syncs a media catalog from the Kodik aggregator API into SQLite."),
		kong.UsageOnError(),
	)

	applyGlobalFlags(&cli)
	initLogging(config.LogLevel(), config.LogFile())

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func applyGlobalFlags(cli *CLI) {
	if cli.LogLevel != "" {
		config.SetLogLevel(cli.LogLevel)
	}
	if cli.Database != "" {
		config.SetDatabasePath(cli.Database)
	}
}

func openStore() (*catalog.Store, error) {
	path := config.DatabasePath()
	store, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	return store, nil
}

func newKodikClient() (*kodik.Client, error) {
	opts := []kodik.Option{
		kodik.WithBaseURL(config.KodikBaseURL()),
		kodik.WithRateLimit(config.KodikRateLimit()),
	}
	client, err := kodik.NewClient(config.KodikToken(), opts...)
	if err != nil {
		return nil, fmt.Errorf("API token is required (set KODIK_API_TOKEN or kodik.token in config): %w", err)
	}
	return client, nil
}

func kodikSource(ctx context.Context, store *catalog.Store) (*catalog.Source, error) {
	source, err := store.GetOrCreateSource(ctx, sourceName, sourceSlug)
	if err != nil {
		return nil, fmt.Errorf("ensuring source row: %w", err)
	}
	return source, nil
}

// Run methods for each command

func (s *SyncCmd) Run() error {
	ctx := context.Background()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := newKodikClient()
	if err != nil {
		return err
	}

	source, err := kodikSource(ctx, store)
	if err != nil {
		return err
	}

	log := slog.Default()
	if s.FillEmptyFields {
		log.Info("Will fill empty fields even if item data is not newer")
	}
	if s.TargetPage > 0 {
		log.Info("Will skip processing until target page", "target", s.TargetPage)
	}

	processor := ingest.NewProcessor(store, source, s.FillEmptyFields, log)
	runner := ingest.NewRunner(client, processor, log)

	var types []string
	if s.Types != "" {
		types = strings.Split(s.Types, ",")
	}

	stats, err := runner.Run(ctx, ingest.RunOptions{
		PageLimit:        s.LimitPages,
		TargetPage:       s.TargetPage,
		ItemsPerPage:     s.ItemsPerPage,
		StartPageLink:    s.StartPageLink,
		Types:            types,
		Year:             s.Year,
		SortBy:           s.SortBy,
		SortOrder:        s.SortDirection,
		WithMaterialData: s.WithMaterialData,
	})
	if err != nil {
		// A fetch failure stops paging but is not a process failure: the
		// partial progress is already committed and counted.
		log.Error("Sync stopped early", "error", err)
	}

	log.Info("Sync finished", "items", stats.Total(), "summary", stats.Summary())
	return nil
}

func (p *PopulateCmd) Run() error {
	ctx := context.Background()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := newKodikClient()
	if err != nil {
		return err
	}

	result, err := translations.NewPopulator(store, client, slog.Default()).Populate(ctx, p.Clear)
	if err != nil {
		return err
	}

	slog.Info("Translations populated",
		"total", result.Total, "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return nil
}

func (u *UpdateCmd) Run() error {
	if len(u.ID) == 0 && !u.All {
		return fmt.Errorf("specify at least one media item with --id or use --all")
	}
	if len(u.ID) > 0 && u.All {
		return fmt.Errorf("cannot use --id and --all together")
	}

	ctx := context.Background()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := newKodikClient()
	if err != nil {
		return err
	}

	source, err := kodikSource(ctx, store)
	if err != nil {
		return err
	}

	syncer := translations.NewSyncer(store, client, source, u.Cleanup, slog.Default())
	processed, failed, err := syncer.Run(ctx, translations.SyncOptions{
		IDs:               u.ID,
		All:               u.All,
		Limit:             u.Limit,
		SkipUpdatedWithin: time.Duration(u.SkipRecentlyUpdated) * time.Hour,
	})
	if err != nil {
		return err
	}

	slog.Info("Translation update finished", "processed", processed, "failed", failed)
	return nil
}
