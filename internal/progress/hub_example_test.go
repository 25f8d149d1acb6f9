package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// discoverySink prints what a scan learned about each identifier.
type discoverySink struct{}

func (discoverySink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case StageFetchDone:
			fmt.Printf("id %d: %s, %d bytes\n", evt.DocID, evt.Outcome, evt.Bytes)
		case StageDocFound:
			fmt.Printf("id %d: %q (%s)\n", evt.DocID, evt.Title, evt.Filename)
		case StageRunDone:
			fmt.Printf("run done, %d found\n", evt.Found)
		}
	}
	return nil
}

func (discoverySink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit follows one identifier through a scan: the response is
// classified, the document is recorded, and the run finishes.
func ExampleHub_Emit() {
	runID := UUIDToBytes(uuid.MustParse("5b0e2c7a-1d44-4f0e-9a63-2f1c8a9d0001"))
	ts := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 8,
		MaxBatchWait:   time.Minute,
	}, discoverySink{})

	hub.Emit(Event{RunID: runID, TS: ts, Stage: StageRunStart})
	hub.Emit(Event{RunID: runID, TS: ts, Stage: StageFetchDone, DocID: 624011, Outcome: OutcomeNotFound})
	hub.Emit(Event{
		RunID:   runID,
		TS:      ts.Add(time.Second),
		Stage:   StageFetchDone,
		DocID:   624012,
		Outcome: OutcomeFound,
		Bytes:   2048,
	})
	hub.Emit(Event{
		RunID:    runID,
		TS:       ts.Add(time.Second),
		Stage:    StageDocFound,
		DocID:    624012,
		Filename: "tesis_624012.pdf",
		Title:    "Kajian Hukum Adat",
	})
	hub.Emit(Event{RunID: runID, TS: ts.Add(2 * time.Second), Stage: StageRunDone, Found: 1})

	// Close drains whatever the batch timer has not flushed yet.
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}
	// Output:
	// id 624011: not_found, 0 bytes
	// id 624012: found, 2048 bytes
	// id 624012: "Kajian Hukum Adat" (tesis_624012.pdf)
	// run done, 1 found
}
