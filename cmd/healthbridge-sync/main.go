package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/healthbridge/internal/sync"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "HealthBridge server URL (e.g. https://healthbridge.tail1234.ts.net)")
	exportPath := flag.String("path", "", "directory of exported provider payload files")
	apiKey := flag.String("api-key", os.Getenv("HEALTHBRIDGE_API_KEY"), "API key (defaults to HEALTHBRIDGE_API_KEY)")
	dryRun := flag.Bool("dry-run", false, "validate files but don't send to server")
	batchSize := flag.Int("batch-size", 20, "payloads per batch request")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("healthbridge-sync", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthbridge-sync -server <URL> -path <export dir> [-dry-run] [-batch-size N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *serverURL == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -dry-run)\n")
		os.Exit(1)
	}
	if *apiKey == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -api-key is required (or use -dry-run)\n")
		os.Exit(1)
	}

	*serverURL = strings.TrimRight(*serverURL, "/")

	info, err := os.Stat(*exportPath)
	if err != nil || !info.IsDir() {
		log.Error("export directory not found", "path", *exportPath)
		os.Exit(1)
	}

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	stateDir := filepath.Join(homeDir, ".healthbridge-sync")

	state, err := sync.OpenStateDB(stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Client stays nil in dry-run mode; the agent never touches it then.
	var client *sync.Client
	if !*dryRun {
		client = sync.NewClient(*serverURL, *apiKey)
	}

	if *dryRun {
		log.Info("DRY RUN mode — files will be validated but not sent")
	}

	agent := sync.New(client, state, *exportPath, *dryRun, *batchSize, log)
	stats, err := agent.Run()
	if err != nil {
		log.Error("sync failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("sync complete")
}

func printStats(stats *sync.Stats) {
	fmt.Println()
	fmt.Println("=== Sync Summary ===")
	fmt.Printf("  Files total:    %d\n", stats.FilesTotal)
	fmt.Printf("  Files synced:   %d\n", stats.FilesSynced)
	fmt.Printf("  Files skipped:  %d (already synced)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:  %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Batches sent:   %d\n", stats.BatchesSent)
	fmt.Printf("  Records sent:   %d\n", stats.RecordsSent)
	fmt.Printf("  Records failed: %d\n", stats.RecordsFailed)
	fmt.Printf("  Stored:         daily=%d body=%d sleep=%d\n",
		stats.StoredRecords.Daily, stats.StoredRecords.Body, stats.StoredRecords.Sleep)
	fmt.Println()
}
