package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/roster"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import-encodings [file]",
	Short: "Bulk-import reference encodings from a JSON file",
	Long: `Import reference face encodings from a JSON export.

The file holds an array of entries:

  [{"person_id": "s-1042", "embedding": [0.01, ...], "model": "mobilefacenet"}]

Entries may carry a "name" instead of a "person_id"; with ROSTER_DATABASE_URL
set, names are resolved against the SIS person table (diacritics and case
are ignored). Enrollment is append-only: existing encodings are kept.

Examples:
  # Preview without writing
  face-attend import-encodings export.json --dry-run

  # Import
  face-attend import-encodings export.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("dry-run", false, "Preview the import without writing anything")
}

// importEntry is one encoding in the import file.
type importEntry struct {
	PersonID  string    `json:"person_id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var entries []importEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	ctx := context.Background()

	var sis *roster.MySQL
	if cfg.Roster.DatabaseURL != "" {
		sis, err = roster.Connect(cfg.Roster.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to roster database: %w", err)
		}
		defer sis.Close()
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()
	encodings := postgres.NewEncodingRepository(pool)

	if dryRun {
		fmt.Println("DRY RUN - no changes will be written")
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Importing encodings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("encodings"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	imported := 0
	skipped := 0
	for i := range entries {
		entry := &entries[i]
		bar.Add(1)

		personID := entry.PersonID
		if personID == "" && entry.Name != "" && sis != nil {
			person, err := sis.FindPersonByName(ctx, entry.Name)
			if err != nil {
				return fmt.Errorf("resolve name %q: %w", entry.Name, err)
			}
			if person != nil {
				personID = person.ID
			}
		}
		if personID == "" {
			fmt.Printf("\n  entry %d: no person_id and name %q did not resolve, skipping\n", i, entry.Name)
			skipped++
			continue
		}
		if len(entry.Embedding) != cfg.Match.EmbeddingDim {
			fmt.Printf("\n  entry %d (%s): embedding has %d dimensions, expected %d, skipping\n",
				i, personID, len(entry.Embedding), cfg.Match.EmbeddingDim)
			skipped++
			continue
		}

		if dryRun {
			imported++
			continue
		}

		_, err := encodings.SaveEncoding(ctx, store.StoredEncoding{
			PersonID:   personID,
			Embedding:  entry.Embedding,
			Dim:        len(entry.Embedding),
			Model:      entry.Model,
			CapturedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("save encoding for %s: %w", personID, err)
		}
		imported++
	}

	fmt.Println("\nImport complete!")
	fmt.Printf("  Imported: %d\n", imported)
	if skipped > 0 {
		fmt.Printf("  Skipped:  %d\n", skipped)
	}
	if dryRun {
		fmt.Printf("  Mode:     DRY RUN\n")
	}
	return nil
}
