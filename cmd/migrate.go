package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/migrate"
	"github.com/hanseplat/userhub/internal/progress"
)

var migrateUser string

const migrateChunkSize = 100

var migrateCmd = &cobra.Command{
	Use:   "migrate <file>",
	Short: "Import legacy records from a JSON export",
	Long: `Reads a JSON array of legacy records (each carrying a "type" discriminant:
profile, conversation, or feedback) and imports them for one user. Items
that fail to decode or write are reported at the end; the rest commit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parsing %s: expected a JSON array: %w", args[0], err)
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		engine := migrate.NewEngine(database, log.Named("migrate"))
		reporter := progress.NewReporter("Importing records")
		reporter.Start(len(records))

		var total migrate.Result
		ctx := context.Background()
		for start := 0; start < len(records); start += migrateChunkSize {
			end := min(start+migrateChunkSize, len(records))

			res, err := engine.MigrateRaw(ctx, migrateUser, records[start:end])
			if err != nil {
				return fmt.Errorf("importing records %d-%d: %w", start, end, err)
			}
			total.Successful += res.Successful
			total.Failed += res.Failed
			total.Errors = append(total.Errors, res.Errors...)

			reporter.Update(end, "")
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Imported %d records (%d failed)\n", total.Successful, total.Failed)
		for _, e := range total.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", e.ItemID, e.Error)
		}
		if total.Failed > 0 {
			return fmt.Errorf("%d records failed to import", total.Failed)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateUser, "user", "u", "", "user id to import records under (required)")
	migrateCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(migrateCmd)
}
