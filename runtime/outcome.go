package runtime

import (
	"fmt"

	"github.com/calliope-io/herald/observer"
)

// OutcomeStatus classifies how a run ended.
type OutcomeStatus string

const (
	// OutcomeSuccess means the watcher exited cleanly and the stream ended.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeWatcherCrash means the watcher died or corrupted its stream.
	OutcomeWatcherCrash OutcomeStatus = "watcher_crash"
	// OutcomeCanceled means the run was interrupted by the user.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// Outcome is the final classification of a run.
type Outcome struct {
	Status  OutcomeStatus
	Message string
}

// DetermineOutcome classifies the run from the ingestion error and the
// watcher exit code. Ingestion errors take precedence: a corrupted stream
// is a crash even when the process manages a clean exit afterwards.
func DetermineOutcome(ingErr error, exitCode int) *Outcome {
	switch {
	case observer.IsCanceledError(ingErr):
		return &Outcome{
			Status:  OutcomeCanceled,
			Message: "run canceled",
		}
	case ingErr != nil:
		return &Outcome{
			Status:  OutcomeWatcherCrash,
			Message: fmt.Sprintf("stream error: %v", ingErr),
		}
	case exitCode != 0:
		return &Outcome{
			Status:  OutcomeWatcherCrash,
			Message: fmt.Sprintf("watcher exited with code %d", exitCode),
		}
	default:
		return &Outcome{
			Status:  OutcomeSuccess,
			Message: "watcher exited cleanly",
		}
	}
}
