package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/conversation"
	"github.com/hanseplat/userhub/internal/realtime"
)

var (
	cleanupUser string
	cleanupAll  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Trim old conversations per the retention policy",
	Long: `Deletes conversations beyond the configured per-user maximum and those
older than the retention window. Runs for one user with --user, or for
every user with --all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (cleanupUser != "") == cleanupAll {
			return fmt.Errorf("exactly one of --user or --all is required")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		// No live subscribers in the CLI; the hub stays disabled.
		hub := realtime.NewHub(zap.NewNop(), false)
		store := conversation.NewStore(database, hub, true, log.Named("conversation"))

		ctx := context.Background()
		maxAge := time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour

		var deleted int
		if cleanupAll {
			deleted, err = store.SweepAll(ctx, cfg.Retention.MaxConversations, maxAge)
		} else {
			var byCount, byAge int
			byCount, err = store.CleanupOld(ctx, cleanupUser, cfg.Retention.MaxConversations)
			if err == nil {
				byAge, err = store.CleanupOlderThan(ctx, cleanupUser, time.Now().UTC().Add(-maxAge))
			}
			deleted = byCount + byAge
		}
		if err != nil {
			return fmt.Errorf("cleaning up conversations: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Deleted %d conversations\n", deleted)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupUser, "user", "u", "", "trim a single user's conversations")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "trim every user's conversations")
	rootCmd.AddCommand(cleanupCmd)
}
