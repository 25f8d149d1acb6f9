// Package progress defines the event structures emitted by the crawl engine.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
	StageFetchDone Stage = "FETCH_DONE"
	StageDocFound  Stage = "DOC_FOUND"
)

// Outcome is the classification result attached to fetch completions.
type Outcome string

// Fetch outcomes tracked for FETCH_DONE events.
const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Event captures a single milestone of a crawl run.
type Event struct {
	// RunID identifies the crawl run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter. For DOC_FOUND it is
	// the discovery time stored on the record.
	TS    time.Time
	Stage Stage
	// DocID is the document identifier for fetch and discovery events.
	DocID int64
	// Filename, Title and URL describe a discovered document.
	Filename string
	Title    string
	URL      string
	// Bytes carries the downloaded body size.
	Bytes int64
	// Found carries the cumulative discovery count on run completion events.
	Found   int64
	Outcome Outcome
	// Dur captures fetch latency, or total wall time for RUN_DONE/RUN_ERROR.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads. DOC_FOUND may omit
// the run ID when the document came from an on-demand lookup.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} && e.Stage != StageDocFound {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.DocID <= 0 {
			return errors.New("fetch done requires doc id")
		}
		if e.Outcome == "" {
			return errors.New("fetch done requires outcome")
		}
	case StageDocFound:
		if e.DocID <= 0 {
			return errors.New("doc found requires doc id")
		}
		if e.Title == "" {
			return errors.New("doc found requires title")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
