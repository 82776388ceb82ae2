// Package progress defines the events the scheduler emits while a crawl runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunHB    Stage = "RUN_HEARTBEAT"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StageURLDone  Stage = "URL_DONE"
)

// Event captures a single component of crawl progress.
type Event struct {
	// RunID identifies one crawl invocation using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Profile names the site profile being crawled.
	Profile string
	// URL is set for URL_DONE events.
	URL string
	// Success is the recorded outcome of a URL_DONE event.
	Success bool
	// Records counts products mapped from the URL (or the whole run).
	Records int
	// Discovered counts follow-up URLs proposed by the URL.
	Discovered int
	// Completed, Failed, InFlight and Pending carry frontier sizes on run events.
	Completed int
	Failed    int
	InFlight  int
	Pending   int
	// Dur is the fetch/expand latency or the run wall time.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunHB, StageRunDone, StageRunError:
	case StageURLDone:
		if e.URL == "" {
			return errors.New("url done requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Profile == "" {
		return errors.New("profile is required")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// Result labels the outcome of a URL_DONE event.
func (e Event) Result() string {
	if e.Success {
		return "success"
	}
	return "failure"
}
