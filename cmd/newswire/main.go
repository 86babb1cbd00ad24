package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"newswire/adapter/postgres"
	"newswire/adapter/rss"
	"newswire/app"
	"newswire/cli/control"
	"newswire/domain"
	"newswire/internal/config"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "--help", "-h", "help":
		printHelp()
		return
	case "run":
		err = cmdRun(args)
	case "watch":
		err = cmdWatch(args)
	case "ingest":
		err = cmdIngest(args)
	case "add":
		err = cmdAdd(args)
	case "list":
		err = cmdList(args)
	case "delete":
		err = cmdDelete(args)
	case "articles":
		err = cmdArticles(args)
	case "set-interval":
		err = cmdSetInterval(args)
	case "set-batch-size":
		err = cmdSetBatchSize(args)
	default:
		fmt.Printf("unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`Usage:
  newswire COMMAND [OPTIONS]

Common Commands:
   run             ingest one batch of active sources and print the summary
   watch           start the background process that periodically ingests all active sources
   ingest          ask a running watcher to ingest a batch now
   add             add a news source (--name, --url)
   list            list configured sources
   delete          delete a source (--name)
   articles        show latest articles for a source (--source, --num)
   set-interval    change the watcher's ingest interval (e.g. 30m)
   set-batch-size  change the watcher's batch size
`)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func cmdRun(args []string) error {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	var batchSize, offset int
	fset.IntVar(&batchSize, "batch-size", 0, "number of sources to ingest (0 = all)")
	fset.IntVar(&offset, "offset", 0, "offset into the active-source list")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	logger := newLogger()

	svc, closeDB, err := buildIngestor(cfg, logger)
	if err != nil {
		printEnvelopeError(err)
		return err
	}
	defer closeDB()

	result, err := svc.Run(context.Background(), domain.BatchOptions{Limit: batchSize, Offset: offset})
	if err != nil {
		printEnvelopeError(err)
		return err
	}
	return printJSON(result)
}

func cmdWatch(args []string) error {
	cfg := config.Load()
	logger := newLogger()

	listener, err := control.TryListen(cfg.ControlAddr)
	if err != nil {
		if errors.Is(err, control.ErrAlreadyRunning) {
			fmt.Println("Background process is already running")
		}
		return err
	}
	defer listener.Close()

	svc, closeDB, err := buildIngestor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	sched := app.NewScheduler(svc, cfg.IngestInterval, cfg.BatchSize, logger)
	ctrl := control.NewServer(sched, svc, cfg.IngestToken)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		_ = http.Serve(listener, ctrl)
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("Ingestion watcher started (interval = %s, batch size = %d)\n", cfg.IngestInterval, cfg.BatchSize)

	<-ctx.Done()
	_ = sched.Stop()
	fmt.Println("Graceful shutdown: watcher stopped")
	return nil
}

func cmdIngest(args []string) error {
	fset := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var batchSize, offset int
	fset.IntVar(&batchSize, "batch-size", 0, "number of sources to ingest (0 = all)")
	fset.IntVar(&offset, "offset", 0, "offset into the active-source list")
	if err := fset.Parse(args); err != nil {
		return err
	}
	cfg := config.Load()
	c := control.NewClient(cfg.ControlAddr, cfg.IngestToken)
	result, err := c.TriggerIngest(batchSize, offset)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdAdd(args []string) error {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	var name, url string
	fset.StringVar(&name, "name", "", "source name")
	fset.StringVar(&url, "url", "", "feed URL")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
		return fmt.Errorf("both --name and --url are required")
	}

	repo, closeDB, err := openRepo()
	if err != nil {
		return err
	}
	defer closeDB()
	return repo.AddSource(context.Background(), name, url)
}

func cmdList(args []string) error {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	var num int
	fset.IntVar(&num, "num", 0, "limit number of sources (0 = all)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	repo, closeDB, err := openRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	sources, err := repo.ListSources(context.Background(), num)
	if err != nil {
		return err
	}
	fmt.Println("# Configured Sources")
	fmt.Println()
	for i, s := range sources {
		status := "active"
		if !s.IsActive {
			status = "inactive"
		}
		last := "never"
		if s.LastFetchedAt != nil {
			last = s.LastFetchedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%d. Name: %s (%s)\n   URL: %s\n   Last fetched: %s\n\n", i+1, s.Name, status, s.RSSURL, last)
	}
	return nil
}

func cmdDelete(args []string) error {
	fset := flag.NewFlagSet("delete", flag.ContinueOnError)
	var name string
	fset.StringVar(&name, "name", "", "source name")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("--name is required")
	}

	repo, closeDB, err := openRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.DeleteSource(context.Background(), name)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no source named %q", name)
	}
	return nil
}

func cmdArticles(args []string) error {
	fset := flag.NewFlagSet("articles", flag.ContinueOnError)
	var sourceName string
	var num int
	fset.StringVar(&sourceName, "source", "", "source name")
	fset.IntVar(&num, "num", 3, "number of articles")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(sourceName) == "" {
		return fmt.Errorf("--source is required")
	}

	repo, closeDB, err := openRepo()
	if err != nil {
		return err
	}
	defer closeDB()

	src, err := repo.GetSourceByName(context.Background(), sourceName)
	if err != nil {
		return err
	}
	arts, err := repo.ListArticlesBySource(context.Background(), src.ID, num)
	if err != nil {
		return err
	}
	fmt.Printf("Source: %s\n\n", src.Name)
	for i, a := range arts {
		fmt.Printf("%d. [%s] %s\n   %s\n\n", i+1, a.PublishedAt.Format("2006-01-02"), a.Title, a.URL)
	}
	return nil
}

func cmdSetInterval(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: newswire set-interval DURATION (e.g., 30m)")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	cfg := config.Load()
	c := control.NewClient(cfg.ControlAddr, cfg.IngestToken)
	old, err := c.SetInterval(d)
	if err != nil {
		return err
	}
	fmt.Printf("Ingest interval changed from %s to %s\n", old, d)
	return nil
}

func cmdSetBatchSize(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: newswire set-batch-size COUNT")
	}
	var n int
	if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil || n <= 0 {
		return fmt.Errorf("invalid batch size: %v", args[0])
	}
	cfg := config.Load()
	c := control.NewClient(cfg.ControlAddr, cfg.IngestToken)
	old, err := c.SetBatchSize(n)
	if err != nil {
		return err
	}
	fmt.Printf("Batch size changed from %d to %d\n", old, n)
	return nil
}

func buildIngestor(cfg config.Config, logger *slog.Logger) (*app.IngestService, func(), error) {
	database, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.New(database)
	if err := repo.Ensure(context.Background()); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("db ensure failed: %w", err)
	}
	fetcher := rss.NewFetcher(rss.FetcherConfig{
		Timeout:     cfg.FetchTimeout,
		MaxAttempts: cfg.FetchMaxAttempts,
	}, logger)
	svc := app.NewIngestService(repo, repo, fetcher, rss.ParseFeed, logger)
	return svc, func() { database.Close() }, nil
}

func openRepo() (*postgres.Repository, func(), error) {
	cfg := config.Load()
	database, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.New(database)
	if err := repo.Ensure(context.Background()); err != nil {
		database.Close()
		return nil, nil, err
	}
	return repo, func() { database.Close() }, nil
}

func openDB(cfg config.Config) (*sql.DB, error) {
	pgURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PGUser, cfg.PGPassword, cfg.PGHost, cfg.PGPort, cfg.PGDatabase,
	)
	dbConn, err := sql.Open("postgres", pgURL)
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetMaxIdleConns(10)
	dbConn.SetConnMaxLifetime(30 * time.Minute)
	if err := dbConn.Ping(); err != nil {
		return nil, err
	}
	return dbConn, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEnvelopeError(err error) {
	_ = printJSON(map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"timestamp": time.Now().UTC(),
	})
}
