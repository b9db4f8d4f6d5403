package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/circleguard/pkg/circleguard"
	"github.com/himanishpuri/circleguard/pkg/circleguard/cache"
	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/circleguard/replay"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
	"github.com/himanishpuri/circleguard/pkg/circleguard/settings"
	"github.com/himanishpuri/circleguard/pkg/logger"
	"github.com/himanishpuri/circleguard/pkg/models"
)

func newLookupCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lookup <beatmap_id>...",
		Short: "Look beatmaps up in the local cache, falling back to the osu! API",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger()
			ids := make([]int, len(args))
			for i, a := range args {
				id, err := strconv.Atoi(a)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid beatmap id %q", a)
				}
				ids[i] = id
			}

			svc, err := createService(circleguard.WithoutBootstrap())
			if err != nil {
				return fmt.Errorf("service initialization failed: %w", err)
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			for _, id := range ids {
				b, err := svc.LookupBeatmap(cmd.Context(), id)
				if errors.Is(err, cache.ErrUnavailable) {
					fmt.Fprintf(out, "❌ Beatmap %d: osu! API unreachable, try again later\n", id)
					log.Warnf("Lookup of %d gave up: %v", id, err)
					continue
				}
				if err != nil {
					return fmt.Errorf("lookup %d: %w", id, err)
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(b); err != nil {
						return err
					}
					continue
				}
				printBeatmap(cmd, b)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}

func printBeatmap(cmd *cobra.Command, b *models.Beatmap) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n🎵 %s\n", b.Filename)
	fmt.Fprintf(out, "   Beatmap:  %d (set %d, mapper %d)\n", b.BeatmapID, b.BeatmapsetID, b.CreatorID)
	fmt.Fprintf(out, "   Mode:     %s\n", b.Mode)
	fmt.Fprintf(out, "   Objects:  %d circles, %d sliders, %d spinners (total %d)\n",
		b.CountNormal, b.CountSlider, b.CountSpinner, b.CountTotal)
	fmt.Fprintf(out, "   Checksum: %s\n", b.Checksum)
	if b.HitLength > 0 {
		fmt.Fprintf(out, "   Length:   %d:%02d\n", b.HitLength/60, b.HitLength%60)
	}
	if !b.LastUpdate.IsZero() {
		fmt.Fprintf(out, "   Updated:  %s\n", humanize.Time(b.LastUpdate))
	}
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Download and install the beatmap snapshot if it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return fmt.Errorf("service initialization failed: %w", err)
			}
			defer svc.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "📥 Fetching beatmap snapshot...")
			start := time.Now()
			if err := svc.BootstrapSnapshot(cmd.Context()); err != nil {
				return fmt.Errorf("snapshot download failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Snapshot ready after %s\n", time.Since(start).Round(time.Millisecond))
			return printStats(cmd, svc)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the local beatmap cache holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService(circleguard.WithoutBootstrap())
			if err != nil {
				return fmt.Errorf("service initialization failed: %w", err)
			}
			defer svc.Close()
			return printStats(cmd, svc)
		},
	}
}

func printStats(cmd *cobra.Command, svc circleguard.Service) error {
	stats, err := svc.CacheStats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !stats.SnapshotReady {
		fmt.Fprintf(out, "\n📭 No snapshot at %s\n", stats.SnapshotPath)
		return nil
	}
	fmt.Fprintf(out, "\n📚 %s\n", stats.SnapshotPath)
	fmt.Fprintf(out, "   Beatmaps: %s\n", humanize.Comma(stats.Beatmaps))
	fmt.Fprintf(out, "   Size:     %s\n", stats.Size)
	return nil
}

func newModsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mods <mod_string>",
		Short: "Parse a mod string such as HDHR into its bit value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mods.Parse(args[0])
			if err != nil {
				var ime *mods.InvalidModError
				if errors.As(err, &ime) && ime.Reason == mods.ReasonOddLength {
					return fmt.Errorf("%w (mod strings are made of two-letter codes)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", m.ShortName(), uint32(m))
			return nil
		},
	}
}

func newAccuracyCmd() *cobra.Command {
	var misses, c50, c100, c300 int
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Compute osu!standard accuracy from hit counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range []int{misses, c50, c100, c300} {
				if n < 0 {
					return errors.New("hit counts cannot be negative")
				}
			}
			acc := replay.Accuracy(misses, c50, c100, c300)
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f%%\n", acc)
			return nil
		},
	}
	cmd.Flags().IntVar(&misses, "miss", 0, "Misses")
	cmd.Flags().IntVar(&c50, "50", 0, "50s")
	cmd.Flags().IntVar(&c100, "100", 0, "100s")
	cmd.Flags().IntVar(&c300, "300", 0, "300s")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change persisted settings",
	}

	open := func() (*settings.Store, error) {
		path := settingsPath
		if path == "" {
			if envCfg, err := circleguard.LoadEnvConfig(); err == nil {
				path = envCfg.SettingsPath
			}
		}
		s, err := settings.Open(path)
		if err != nil {
			return nil, err
		}
		return s, s.EnsureDefaults()
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := open()
				if err != nil {
					return err
				}
				for _, k := range s.Keys() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %q\n", k, s.String(k))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := open()
				if err != nil {
					return err
				}
				if _, err := s.Get(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.String(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting; numbers and booleans keep their type",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := open()
				if err != nil {
					return err
				}
				if err := s.Set(args[0], parseValue(args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s = %s\n", args[0], s.String(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore every setting to its default",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := open()
				if err != nil {
					return err
				}
				if err := s.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Settings reset (%s)\n", s.Path())
				return nil
			},
		},
	)
	return cmd
}

// parseValue resolves a command-line value the way YAML would, so "18"
// stays an int and "true" a bool. Anything else is kept as the raw string.
func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	}
	return raw
}

func newRunCmd() *cobra.Command {
	var (
		kind      string
		beatmapID int
		userID    int
		modString string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "run [replay_file]...",
		Short: "Queue a check and follow it until it finishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.GetLogger()
			mod, err := mods.ParseOptional(modString)
			if err != nil {
				return err
			}
			check := runs.Check{
				Kind:        runs.CheckKind(strings.ToLower(kind)),
				BeatmapID:   beatmapID,
				UserID:      userID,
				Mods:        mod,
				ReplayPaths: args,
				Threshold:   threshold,
			}

			svc, err := createService()
			if err != nil {
				return fmt.Errorf("service initialization failed: %w", err)
			}
			defer svc.Close()

			run, err := svc.SubmitRun([]runs.Check{check})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🔍 Run %d queued\n", run.ID)

			for {
				select {
				case u, ok := <-svc.RunUpdates():
					if !ok {
						return nil
					}
					if u.RunID != run.ID {
						continue
					}
					fmt.Fprintf(out, "   [%s] %s\n", time.Now().Format(time.TimeOnly), u.Status)
					if u.Status.IsFinished() {
						if err := run.Err(); err != nil {
							return fmt.Errorf("run %d: %w", run.ID, err)
						}
						return nil
					}
				case <-cmd.Context().Done():
					log.Infof("Interrupted, canceling run %d", run.ID)
					_ = svc.CancelRun(run.ID)
					return cmd.Context().Err()
				}
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "check", string(runs.CheckSteal), "Check to run: steal, relax, correction or visualize")
	f.IntVar(&beatmapID, "map", 0, "Beatmap id")
	f.IntVar(&userID, "user", 0, "User id")
	f.StringVar(&modString, "mods", "", "Only consider replays with these mods, e.g. HDHR")
	f.Float64Var(&threshold, "threshold", 0, "Override the check's threshold setting")
	return cmd
}
