package crawler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/progress"
)

// Engine defaults.
const (
	DefaultDelay      = time.Second
	DefaultFlushEvery = 10
)

// EngineConfig tunes the scan loop.
type EngineConfig struct {
	// Delay is the pause after every network call. Store hits never pause.
	Delay time.Duration
	// FlushEvery flushes the catalog after this many discoveries.
	FlushEvery int
}

// EngineDeps carries the collaborators an Engine drives.
type EngineDeps struct {
	Catalog    Catalog
	Classifier Classifier
	Extractor  TitleExtractor
	Clock      Clock
	IDs        IDGenerator
	Emitter    progress.Emitter
	Logger     *zap.Logger
}

// Engine scans an ID range sequentially. It owns the single worker slot and
// the live Status; any number of goroutines may read Status while a run is
// active.
type Engine struct {
	cfg        EngineConfig
	catalog    Catalog
	classifier Classifier
	extractor  TitleExtractor
	clock      Clock
	ids        IDGenerator
	emitter    progress.Emitter
	logger     *zap.Logger
	pauser     pauseController

	status  *Status
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewEngine wires an Engine. Runs started with Start stop when ctx is canceled.
func NewEngine(ctx context.Context, cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("engine requires a catalog")
	case deps.Classifier == nil:
		return nil, errors.New("engine requires a classifier")
	case deps.Extractor == nil:
		return nil, errors.New("engine requires a title extractor")
	case deps.Clock == nil:
		return nil, errors.New("engine requires a clock")
	case deps.IDs == nil:
		return nil, errors.New("engine requires an id generator")
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if ctx == nil {
		ctx = context.Background()
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		catalog:    deps.Catalog,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		clock:      deps.Clock,
		ids:        deps.IDs,
		emitter:    emitter,
		logger:     logger,
		pauser:     timerPauseController{},
		status:     NewStatus(deps.Clock),
		baseCtx:    ctx,
	}, nil
}

// Status returns a snapshot of crawl progress.
func (e *Engine) Status() StatusSnapshot {
	return e.status.Snapshot()
}

// IsBusy reports whether a run holds the worker slot.
func (e *Engine) IsBusy() bool {
	return e.status.IsRunning()
}

func validateRange(startID, endID int64) error {
	if startID < 1 || endID < startID {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, startID, endID)
	}
	return nil
}

// Start launches a scan of [startID, endID] in the background and returns
// immediately. It fails with ErrAlreadyRunning when a run is active.
func (e *Engine) Start(startID, endID int64) (string, error) {
	runID, err := e.acquire(startID, endID)
	if err != nil {
		return "", err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.run(e.baseCtx, runID, startID, endID); err != nil {
			e.logger.Warn("crawl run ended with error", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}()
	return runID.String(), nil
}

// Run scans [startID, endID] on the calling goroutine. It returns ctx.Err()
// when interrupted and an error describing any recovered panic.
func (e *Engine) Run(ctx context.Context, startID, endID int64) error {
	runID, err := e.acquire(startID, endID)
	if err != nil {
		return err
	}
	return e.run(ctx, runID, startID, endID)
}

// Wait blocks until every run launched by Start has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) acquire(startID, endID int64) (uuid.UUID, error) {
	if err := validateRange(startID, endID); err != nil {
		return uuid.Nil, err
	}
	runID, err := e.ids.NewRawID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("new run id: %w", err)
	}
	if !e.status.tryAcquire() {
		return uuid.Nil, ErrAlreadyRunning
	}
	e.status.reset(runID.String(), startID, endID, e.clock.Now())
	return runID, nil
}

func (e *Engine) run(ctx context.Context, runID uuid.UUID, startID, endID int64) (err error) {
	started := e.clock.Now()
	logger := e.logger.With(zap.String("run_id", runID.String()))
	rid := progress.UUIDToBytes(runID)
	e.emitter.Emit(progress.Event{RunID: rid, TS: started.UTC(), Stage: progress.StageRunStart})
	logger.Info("crawl run started", zap.Int64("start_id", startID), zap.Int64("end_id", endID))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panic: %v", r)
			logger.Error("crawl run panicked", zap.Any("panic", r), zap.Int64("doc_id", e.status.currentID.Load()))
		}
		e.checkpoint(context.WithoutCancel(ctx), logger)
		finished := e.clock.Now()
		e.status.release(finished)

		evt := progress.Event{
			RunID: rid,
			TS:    finished.UTC(),
			Stage: progress.StageRunDone,
			Found: e.status.found.Load(),
			Dur:   max(finished.Sub(started), 0),
		}
		if err != nil {
			evt.Stage = progress.StageRunError
			evt.Note = err.Error()
		}
		e.emitter.Emit(evt)
		logger.Info("crawl run finished", zap.Int64("found", evt.Found), zap.Duration("dur", evt.Dur), zap.Error(err))
	}()

	for id := startID; ; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.status.setCurrent(id)
		if !e.catalog.Contains(id) {
			e.visit(ctx, logger, rid, id)
			e.pauser.Pause(ctx, e.cfg.Delay)
		}
		if id == endID || id == math.MaxInt64 {
			return nil
		}
	}
}

// visit classifies one unknown ID and records a discovery.
func (e *Engine) visit(ctx context.Context, logger *zap.Logger, rid [16]byte, id int64) {
	res, err := e.classifier.Classify(ctx, id)
	fetchEvt := progress.Event{
		RunID:   rid,
		TS:      e.clock.Now().UTC(),
		Stage:   progress.StageFetchDone,
		DocID:   id,
		Outcome: progress.OutcomeNotFound,
		Dur:     max(res.Duration, 0),
	}
	if err != nil {
		fetchEvt.Outcome = progress.OutcomeError
		fetchEvt.Note = err.Error()
		e.emitter.Emit(fetchEvt)
		if ctx.Err() == nil {
			logger.Warn("fetch failed", zap.Int64("doc_id", id), zap.Error(err))
		}
		return
	}
	if !res.Found {
		e.emitter.Emit(fetchEvt)
		return
	}
	fetchEvt.Outcome = progress.OutcomeFound
	fetchEvt.Bytes = int64(len(res.Body))
	e.emitter.Emit(fetchEvt)

	rec := e.record(res)
	e.catalog.Put(rec)
	found := e.status.incrementFound()
	e.emitter.Emit(progress.Event{
		RunID:    rid,
		TS:       rec.DiscoveredAt.UTC(),
		Stage:    progress.StageDocFound,
		DocID:    rec.ID,
		Filename: rec.Filename,
		Title:    rec.Title,
		URL:      rec.SourceURL,
	})
	logger.Info("document found",
		zap.Int64("doc_id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.String("title", rec.Title),
		zap.Int64("found", found),
	)
	if found%int64(e.cfg.FlushEvery) == 0 {
		e.checkpoint(ctx, logger)
	}
}

func (e *Engine) record(res Classification) Record {
	return Record{
		ID:           res.ID,
		Filename:     res.Filename,
		Title:        e.extractor.Extract(res.Body),
		DiscoveredAt: e.clock.Now().Truncate(time.Second),
		SourceURL:    e.classifier.Locator(res.ID),
	}
}

// checkpoint flushes the catalog, retrying once. A second failure is logged
// and left for the next checkpoint.
func (e *Engine) checkpoint(ctx context.Context, logger *zap.Logger) {
	err := e.catalog.Flush(ctx)
	if err == nil {
		return
	}
	logger.Error("catalog flush failed, retrying", zap.Error(err))
	if err = e.catalog.Flush(ctx); err != nil {
		logger.Error("catalog flush retry failed", zap.Error(err))
	}
}

// Lookup classifies a single ID on demand, recording and flushing a found
// document immediately and emitting DOC_FOUND without a run ID. It may run
// concurrently with a scan.
func (e *Engine) Lookup(ctx context.Context, id int64) (LookupResult, error) {
	if id < 1 {
		return LookupResult{}, fmt.Errorf("%w: %d", ErrInvalidRange, id)
	}
	res, err := e.classifier.Classify(ctx, id)
	if err != nil {
		return LookupResult{}, err
	}
	if !res.Found {
		return LookupResult{}, nil
	}
	rec := e.record(res)
	e.catalog.Put(rec)
	// Lookups carry the zero run ID.
	e.emitter.Emit(progress.Event{
		TS:       rec.DiscoveredAt.UTC(),
		Stage:    progress.StageDocFound,
		DocID:    rec.ID,
		Filename: rec.Filename,
		Title:    rec.Title,
		URL:      rec.SourceURL,
	})
	logger := e.logger.With(zap.String("lookup", "on_demand"))
	logger.Info("document found", zap.Int64("doc_id", rec.ID), zap.String("title", rec.Title))
	e.checkpoint(ctx, logger)
	return LookupResult{Found: true, Record: rec, Size: len(res.Body)}, nil
}
