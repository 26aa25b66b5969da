package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"responder/internal/config"
	"responder/internal/database"
	"responder/internal/ingest"
	"responder/internal/llm"
	"responder/internal/triage"

	"github.com/rs/zerolog"
)

func main() {
	inputPath := flag.String("file", "", "Path to a helpdesk CSV export or an MBOX mailbox")
	userID := flag.String("user", "", "User the conversations belong to")
	classify := flag.Bool("classify", false, "Classify and group conversations after import")
	ownDomains := flag.String("own-domains", "", "Comma-separated domains treated as agents in MBOX input (defaults to the SUPPORT_EMAIL domain)")
	flag.Parse()

	if *inputPath == "" || *userID == "" {
		fmt.Println("Usage:")
		fmt.Println("  Import CSV:         import-csv -user alice -file export.csv")
		fmt.Println("  Import MBOX:        import-csv -user alice -file support.mbox")
		fmt.Println("  Import and group:   import-csv -user alice -file export.csv -classify")
		fmt.Println("Without DATABASE_URL the import runs against memory and only reports counts.")
		os.Exit(1)
	}

	cfg := config.Load()
	logger := cfg.SetupLogger()
	ctx := context.Background()

	store := openStore(ctx, cfg, logger)

	rows, err := readRows(*inputPath, domains(*ownDomains, cfg.SupportEmail))
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *inputPath, err)
	}
	fmt.Printf("Read %d rows from %s\n", len(rows), *inputPath)

	persister := triage.NewPersister(store, cfg.InsertBatchSize, logger)
	result, err := persister.IngestRows(ctx, *userID, rows)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Created %d conversations (%d rows filtered, %d skipped)\n", result.Created, result.Filtered, result.Skipped)
	fmt.Printf("  spam tickets:     %d\n", result.Stats.SpamTickets)
	fmt.Printf("  system messages:  %d\n", result.Stats.SystemMessages)
	fmt.Printf("  empty tickets:    %d\n", result.Stats.EmptyTickets)
	fmt.Printf("  orphan rows:      %d\n", result.Stats.OrphanRows)

	if !*classify || len(result.IDs) == 0 {
		return
	}

	client, err := llm.New(cfg, logger)
	if err != nil {
		log.Fatalf("Cannot classify: %v", err)
	}

	classifier := triage.NewClassifier(store, client, cfg.ClassifyBatchSize, cfg.LLMTimeoutDuration(), logger)
	classified, err := classifier.Classify(ctx, *userID, result.IDs)
	if err != nil {
		log.Fatalf("Classification failed: %v", err)
	}

	groups, err := triage.NewGrouper(store, logger).Group(ctx, *userID, classified)
	if err != nil {
		log.Fatalf("Grouping failed: %v", err)
	}

	fmt.Println("\nGroups:")
	for _, g := range groups {
		fmt.Printf("  %-45s %d\n", g.Name, len(g.Emails))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) triage.Store {
	if cfg.DatabaseURL == "" {
		fmt.Println("DATABASE_URL not set, running a dry import in memory")
		return triage.NewMemoryStore()
	}

	db, err := database.New(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.CreateTables(ctx, db); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}
	return database.NewTriageStore(db, logger)
}

func readRows(path string, ownDomains []string) ([]ingest.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mbox", ".mbx":
		return ingest.ParseMBOX(f, ownDomains)
	case ".csv":
		records, err := ingest.ReadCSV(f)
		if err != nil {
			return nil, err
		}
		return ingest.Normalize(records), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .csv or .mbox", filepath.Ext(path))
	}
}

func domains(flagValue, supportEmail string) []string {
	var out []string
	for _, d := range strings.Split(flagValue, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		if at := strings.LastIndex(supportEmail, "@"); at >= 0 {
			out = append(out, strings.ToLower(supportEmail[at+1:]))
		}
	}
	return out
}
