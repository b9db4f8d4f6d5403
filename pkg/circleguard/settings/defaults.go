package settings

// Settings keys
const (
	KeyRan              = "ran"
	KeyThreshold        = "threshold"
	KeyAPIKey           = "api_key"
	KeyDarkTheme        = "dark_theme"
	KeyCaching          = "caching"
	KeyCacheDir         = "cache_dir"
	KeyLogSave          = "log_save"
	KeyLogDir           = "log_dir"
	KeyLogMode          = "log_mode"
	KeyLogOutput        = "log_output"
	KeyLocalReplayDir   = "local_replay_dir"
	KeyStealMaxSim      = "steal_max_sim"
	KeyRelaxMaxUR       = "relax_max_ur"
	KeyCorrectionMaxAng = "correction_max_angle"
	KeyCorrectionMinDst = "correction_min_distance"

	KeyMessageLoadingReplays        = "message_loading_replays"
	KeyMessageStartingComparing     = "message_starting_comparing"
	KeyMessageFinishedComparing     = "message_finished_comparing"
	KeyMessageCheaterFound          = "message_cheater_found"
	KeyStringResultText             = "string_result_text"
	KeyMessageRatelimited           = "message_ratelimited"
	KeyMessageLoadingInfo           = "message_loading_info"
	KeyMessageStartingInvestigation = "message_starting_investigation"
	KeyMessageStartingVisualization = "message_starting_investigation_visualization"
	KeyMessageFinishedInvestigation = "message_finished_investigation"
)

// log_output values
const (
	LogOutputNone = iota
	LogOutputTerminal
	LogOutputDebugWindow
	LogOutputBoth
)

// Defaults returns a fresh copy of the first-run settings.
func Defaults() map[string]any {
	return map[string]any{
		KeyRan:              false,
		KeyThreshold:        18,
		KeyAPIKey:           "",
		KeyDarkTheme:        0,
		KeyCaching:          0,
		KeyCacheDir:         ".",
		KeyLogSave:          0,
		KeyLogDir:           "./logs/",
		KeyLogMode:          3,
		KeyLogOutput:        LogOutputNone,
		KeyLocalReplayDir:   "./examples/replays/",
		KeyStealMaxSim:      18,
		KeyRelaxMaxUR:       50,
		KeyCorrectionMaxAng: 10,
		KeyCorrectionMinDst: 8,

		KeyMessageLoadingReplays:        "[{ts:%X}] Loading {num_replays} Replays",
		KeyMessageStartingComparing:     "[{ts:%X}] Comparing Replays",
		KeyMessageFinishedComparing:     "[{ts:%X}] Done",
		KeyMessageCheaterFound:          "[{ts:%X}] {similarity:.1f} similarity. {replay1_name} vs {replay2_name}, {later_name} set later",
		KeyStringResultText:             "[{ts:%x} {ts:%H}:{ts:%M}] {similarity:.1f} similarity. {replay1_name} vs {replay2_name}",
		KeyMessageRatelimited:           "[{ts:%X}] Ratelimited, waiting for {s} seconds",
		KeyMessageLoadingInfo:           "[{ts:%X}] Loading {check_type} info",
		KeyMessageStartingInvestigation: "[{ts:%X}] Running {check_type} check on {num_replays} Replays",
		KeyMessageStartingVisualization: "[{ts:%X}] Visualizing {num_replays} Replays",
		KeyMessageFinishedInvestigation: "[{ts:%X}] Done",
	}
}
