package runs

// Status is the lifecycle state of a Run as shown to the user.
type Status string

const (
	// StatusQueued means the run is waiting behind earlier runs
	StatusQueued Status = "Queued"

	// StatusLoading means replays and beatmap info are being loaded
	StatusLoading Status = "Loading Replays"

	// StatusRatelimited means the run is waiting out an API ratelimit
	StatusRatelimited Status = "Ratelimited"

	// StatusInvalidArguments means the checks could not be built from the input
	StatusInvalidArguments Status = "Invalid arguments"

	// StatusInvestigating means the checks are running
	StatusInvestigating Status = "Investigating Replays"

	// StatusFinished means every check completed
	StatusFinished Status = "Finished"

	// StatusCanceled means the run was canceled by the user
	StatusCanceled Status = "Canceled"

	// StatusError means the run failed with an error
	StatusError Status = "Error"
)

func (s Status) String() string {
	return string(s)
}

// IsActive reports whether the worker is currently executing the run.
func (s Status) IsActive() bool {
	return s == StatusLoading || s == StatusRatelimited || s == StatusInvestigating
}

// IsFinished reports whether the run has reached a terminal state.
func (s Status) IsFinished() bool {
	return s == StatusFinished || s == StatusCanceled || s == StatusError || s == StatusInvalidArguments
}
