package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/etd-crawler/internal/progress"
	"github.com/JakeFAU/etd-crawler/internal/store"
)

// TestStoreSinkPersistsEvents ensures runs and deduplicated documents reach the repository.
func TestStoreSinkPersistsEvents(t *testing.T) {
	t.Parallel()

	repo := &fakeMirrorRepo{}
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now},
		{RunID: runID, Stage: progress.StageDocFound, TS: now, DocID: 12, Title: "First", Filename: "a.pdf"},
		{RunID: runID, Stage: progress.StageDocFound, TS: now, DocID: 10, Title: "Second", Filename: "b.pdf"},
		{RunID: runID, Stage: progress.StageDocFound, TS: now, DocID: 12, Title: "First v2", Filename: "a.pdf"},
		{RunID: runID, Stage: progress.StageRunDone, TS: now.Add(3 * time.Second), Found: 2},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []uuid.UUID{runUUID}, repo.starts)
	require.Len(t, repo.completes, 1)
	require.Equal(t, store.RunSuccess, repo.completes[0].status)
	require.Equal(t, int64(2), repo.completes[0].found)
	require.Nil(t, repo.completes[0].errMsg)
	require.Len(t, repo.docs, 2)
	require.Equal(t, int64(10), repo.docs[0].ID)
	require.Equal(t, "First v2", repo.docs[1].Title)
	require.Equal(t, runUUID, repo.docs[1].RunID)
}

func TestStoreSinkMirrorsLookupDocuments(t *testing.T) {
	t.Parallel()

	repo := &fakeMirrorRepo{}
	sink := NewStoreSink(repo, nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Stage: progress.StageDocFound, TS: time.Now(), DocID: 624012, Title: "Kajian Hukum Adat", Filename: "k.pdf"},
	}))

	require.Empty(t, repo.starts)
	require.Len(t, repo.docs, 1)
	require.Equal(t, int64(624012), repo.docs[0].ID)
	require.Equal(t, uuid.Nil, repo.docs[0].RunID)
}

// TestStoreSinkRecordsRunError carries the failure note to the repository.
func TestStoreSinkRecordsRunError(t *testing.T) {
	t.Parallel()

	repo := &fakeMirrorRepo{}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunError, TS: time.Now(), Note: "boom"},
	}))

	require.Len(t, repo.completes, 1)
	require.Equal(t, store.RunError, repo.completes[0].status)
	require.NotNil(t, repo.completes[0].errMsg)
	require.Equal(t, "boom", *repo.completes[0].errMsg)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeMirrorRepo{fail: true}
	sink := NewStoreSink(repo, nil)
	runID := progress.UUIDToBytes(uuid.New())
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: time.Now()},
	})
	require.Error(t, err)
}

type fakeMirrorRepo struct {
	fail      bool
	starts    []uuid.UUID
	completes []completeCall
	docs      []store.Document
}

type completeCall struct {
	runID  uuid.UUID
	status store.RunStatus
	found  int64
	errMsg *string
}

func (f *fakeMirrorRepo) UpsertRunStart(_ context.Context, runID uuid.UUID, _ time.Time) error {
	if f.fail {
		return assertErr("start")
	}
	f.starts = append(f.starts, runID)
	return nil
}

func (f *fakeMirrorRepo) CompleteRun(
	_ context.Context,
	runID uuid.UUID,
	_ time.Time,
	status store.RunStatus,
	found int64,
	errMsg *string,
) error {
	if f.fail {
		return assertErr("complete")
	}
	f.completes = append(f.completes, completeCall{runID: runID, status: status, found: found, errMsg: errMsg})
	return nil
}

func (f *fakeMirrorRepo) UpsertDocument(_ context.Context, doc store.Document) error {
	if f.fail {
		return assertErr("document")
	}
	f.docs = append(f.docs, doc)
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
