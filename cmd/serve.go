package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the userhub API server",
	Long:  `Starts the REST and WebSocket API, the retention sweeper, and (when configured) debounced profile sync to a central instance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if servePort > 0 {
			cfg.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
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

		srv := server.New(cfg, database, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go srv.RunRetentionSweeps(ctx)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "userhub %s starting on port %d\n", Version, cfg.Port)
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}
