package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrMartyK/source1.5/internal/config"
	"github.com/MrMartyK/source1.5/internal/golden"
	"github.com/MrMartyK/source1.5/internal/harness"
	"github.com/MrMartyK/source1.5/internal/logging"
	"github.com/MrMartyK/source1.5/internal/storage"
	"github.com/MrMartyK/source1.5/internal/web"
)

// NewRootCmd creates the root Cobra command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paritytest",
		Short: "Visual parity testing for the engine renderer",
		Long: `paritytest launches the game at configured camera positions, captures
screenshots, and compares them against golden references to catch visual
regressions in the renderer.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full parity test suite",
		Long: `Capture a screenshot at every configured camera position and compare
each against its golden reference. Exits non-zero when any comparison
falls below its similarity threshold.

Examples:
  # Run with the default config discovery (PARITY_CONFIG or flag)
  paritytest run --config parity_config.json

  # Persist run history for later review
  paritytest run --config parity_config.json --db parity.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.Setup(cfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			var recorder harness.RunRecorder
			if dbPath != "" {
				store, err := storage.New(dbPath)
				if err != nil {
					return fmt.Errorf("open run store: %w", err)
				}
				defer store.Close()
				recorder = store
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := harness.NewRunner(cfg, logger, recorder)
			success, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			if !success {
				return fmt.Errorf("parity check failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default: PARITY_CONFIG or parity_config.json)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for run history (disabled if empty)")

	return cmd
}

func newFetchCmd() *cobra.Command {
	var (
		game      string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch golden map content from a local Steam installation",
		Long: `Locate the local Steam installation, find the installed game, and copy
its reference maps into the golden content directory. Already-synced maps
are skipped.

Examples:
  paritytest fetch --game tf
  paritytest fetch --game hl2mp --output game/content/golden`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New("info", "text")

			fetcher, err := golden.NewFetcher(game, outputDir, logger)
			if err != nil {
				return err
			}
			if err := fetcher.Fetch(); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Copied: %d, Skipped: %d, Failed: %d\n",
				fetcher.Stats.Copied, fetcher.Stats.Skipped, fetcher.Stats.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&game, "game", "g", "tf", "game to fetch content for (tf|hl2mp)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "golden_content", "output directory for golden content")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent parity runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.New(dbPath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stdout, "No parity runs recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tMAP\tSTATUS\tPASSED\tTOTAL\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.MapName, r.Status, r.Passed, r.Total,
					r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "parity.db", "SQLite database with run history")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show")

	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		addr       string
		configPath string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest parity report and run history over HTTP",
		Long: `Start an HTTP server exposing the latest HTML report, the captured and
golden screenshots, and the persisted run history.

Examples:
  paritytest serve --addr :8080 --config parity_config.json --db parity.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.Setup(cfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			var store *storage.Store
			if dbPath != "" {
				store, err = storage.New(dbPath)
				if err != nil {
					return fmt.Errorf("open run store: %w", err)
				}
				defer store.Close()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := web.NewServer(addr, cfg.ScreenshotDir, cfg.GoldenDir, store, logger)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "server address (host:port)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default: PARITY_CONFIG or parity_config.json)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database with run history (history endpoints empty if unset)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("paritytest v1.0.0")
		},
	}
}

// Execute runs the root command; callers translate a non-nil error into a
// non-zero exit status.
func Execute() error {
	ctx := context.Background()
	return NewRootCmd().ExecuteContext(ctx)
}
