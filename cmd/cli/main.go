package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/circleguard/pkg/circleguard"
	"github.com/himanishpuri/circleguard/pkg/logger"
)

// Global flags
var (
	cacheDir     string
	apiKey       string
	settingsPath string
	snapshotURL  string
	noBootstrap  bool
)

func main() {
	log := logger.GetLogger()

	root := newRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "circleguard",
		Short:         "Beatmap cache, mod parsing and run queue for osu! replay analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			printBanner(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory holding online.db (env: CIRCLEGUARD_CACHE_DIR, default: cache_dir setting)")
	flags.StringVar(&apiKey, "api-key", "", "osu! API key (env: CIRCLEGUARD_API_KEY, default: api_key setting)")
	flags.StringVar(&settingsPath, "settings", "", "Settings file (env: CIRCLEGUARD_SETTINGS_PATH)")
	flags.StringVar(&snapshotURL, "snapshot-url", "", "Where to download the beatmap snapshot from (env: CIRCLEGUARD_SNAPSHOT_URL)")
	flags.BoolVar(&noBootstrap, "no-bootstrap", false, "Do not download the beatmap snapshot in the background")

	root.AddCommand(
		newLookupCmd(),
		newBootstrapCmd(),
		newStatsCmd(),
		newModsCmd(),
		newAccuracyCmd(),
		newSettingsCmd(),
		newRunCmd(),
	)
	return root
}

func printBanner(cmd *cobra.Command) {
	banner := `
  ___ _         _                              _
 / __(_)_ _ __| |___ __ _ _  _ __ _ _ _ __| |
| (__| | '_/ _| / -_) _' | || / _' | '_/ _' |
 \___|_|_| \__|_\___\__, |\_,_\__,_|_| \__,_|
                    |___/
`
	fmt.Fprintln(cmd.ErrOrStderr(), banner)
}

// createService builds the service from the environment, overridden by
// command-line flags.
func createService(opts ...circleguard.Option) (circleguard.Service, error) {
	envCfg, err := circleguard.LoadEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	all := envCfg.Options()
	if cacheDir != "" {
		all = append(all, circleguard.WithCacheDir(cacheDir))
	}
	if apiKey != "" {
		all = append(all, circleguard.WithAPIKey(apiKey))
	}
	if settingsPath != "" {
		all = append(all, circleguard.WithSettingsPath(settingsPath))
	}
	if snapshotURL != "" {
		all = append(all, circleguard.WithSnapshotURL(snapshotURL))
	}
	if noBootstrap {
		all = append(all, circleguard.WithoutBootstrap())
	}
	return circleguard.NewService(append(all, opts...)...)
}
