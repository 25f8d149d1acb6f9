package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/storage/local"
	"github.com/JakeFAU/etd-crawler/internal/storage/memory"
)

func record(id int64, title string) crawler.Record {
	return crawler.Record{
		ID:           id,
		Filename:     "doc" + title + ".pdf",
		Title:        title,
		DiscoveredAt: time.Date(2024, 5, 17, 9, 30, 15, 0, time.Local),
		SourceURL:    crawler.Locator("http://etd.example/download/", id),
	}
}

func assertSameRecord(t *testing.T, want, got crawler.Record) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Filename, got.Filename)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.SourceURL, got.SourceURL)
	assert.True(t, want.DiscoveredAt.Equal(got.DiscoveredAt), "want %s got %s", want.DiscoveredAt, got.DiscoveredAt)
}

func TestLoadMissingBackendStartsEmpty(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	require.Empty(t, s.Load(context.Background()))
	require.Zero(t, s.Count())
}

func TestLoadCorruptDataStartsEmpty(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"{not json", "", "[1,2,3]", `{"abc":{"title":"x"}}`} {
		s := New(memory.NewCatalogBlobWith([]byte(data)), nil)
		require.Empty(t, s.Load(context.Background()), "data %q", data)
	}
}

func TestLoadAcceptsStringIDs(t *testing.T) {
	t.Parallel()

	data := `{
  "100": {"id": 100, "filename": "a.pdf", "title": "Analisis Sistem", "date": "2024-05-17 09:30:15", "direct_url": "http://etd.example/download/100"},
  "624012": {"id": "624012", "filename": "b.pdf", "title": "Kajian Hukum Adat", "date": "2024-05-18 10:00:00", "direct_url": "http://etd.example/download/624012"},
  "624013": {"id": "not-a-number", "filename": "c.pdf", "title": "Ekologi Pesisir", "date": "", "direct_url": ""}
}`
	blob := memory.NewCatalogBlobWith([]byte(data))
	s := New(blob, nil)
	loaded := s.Load(context.Background())

	require.Len(t, loaded, 3)
	assert.Equal(t, "Kajian Hukum Adat", loaded[624012].Title)
	assert.Equal(t, int64(624013), loaded[624013].ID)
	assert.True(t, loaded[624013].DiscoveredAt.IsZero())

	require.NoError(t, s.Flush(context.Background()))
	reloaded := New(blob, nil).Load(context.Background())
	require.Len(t, reloaded, 3)
	for id, rec := range loaded {
		assertSameRecord(t, rec, reloaded[id])
	}
}

func TestLoadSkipsOnlyBadEntries(t *testing.T) {
	t.Parallel()

	data := `{
  "7": {"id": 7, "filename": "a.pdf", "title": "Sistem Pakar", "date": "2024-05-17 09:30:15", "direct_url": ""},
  "abc": {"title": "no id anywhere"},
  "8": {"id": 8, "title": 42},
  "9": null,
  "10": {"id": 10, "filename": "d.pdf", "title": "Tanggal Rusak", "date": "kemarin", "direct_url": ""}
}`
	loaded := New(memory.NewCatalogBlobWith([]byte(data)), nil).Load(context.Background())

	require.Len(t, loaded, 2)
	assert.Equal(t, "Sistem Pakar", loaded[7].Title)
	assert.Equal(t, "Tanggal Rusak", loaded[10].Title)
	assert.True(t, loaded[10].DiscoveredAt.IsZero())
}

func TestDecodeReportsProblemEntries(t *testing.T) {
	t.Parallel()

	records, problems, err := Decode([]byte(`{"1": {"id": 1, "title": "Satu"}, "x": [1]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, problems, 1)
	assert.Equal(t, "x", problems[0].Key)
	assert.ErrorIs(t, problems[0], errNotObject)

	_, _, err = Decode([]byte("null"))
	require.ErrorIs(t, err, errNotObject)
}

func TestEncodeKeepsEmptyDate(t *testing.T) {
	t.Parallel()

	in := `{"3": {"id": 3, "filename": "c.pdf", "title": "Tanpa Tanggal", "date": "", "direct_url": ""}}`
	records, problems, err := Decode([]byte(in))
	require.NoError(t, err)
	require.Empty(t, problems)

	out, err := Encode(records)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"date": ""`)
	assert.NotContains(t, string(out), "0001-01-01")
}

func TestLoadUnreadableBackendStartsEmpty(t *testing.T) {
	t.Parallel()

	s := New(failingBackend{}, nil)
	require.Empty(t, s.Load(context.Background()))
}

func TestFlushRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawled_pdfs.json")
	file, err := local.New(local.Config{Path: path})
	require.NoError(t, err)
	ctx := context.Background()

	s := New(file, nil)
	s.Load(ctx)
	want := []crawler.Record{record(101, "Analisis Jaringan"), record(7, "Études sur la Politique Publique")}
	for _, rec := range want {
		s.Put(rec)
	}
	require.NoError(t, s.Flush(ctx))

	reloaded := New(file, nil).Load(ctx)
	require.Len(t, reloaded, 2)
	for _, rec := range want {
		assertSameRecord(t, rec, reloaded[rec.ID])
	}
}

func TestFlushWritesCatalogFormat(t *testing.T) {
	t.Parallel()

	blob := memory.NewCatalogBlob()
	s := New(blob, nil)
	s.Put(record(5, "Ekonomi & Pembangunan"))
	require.NoError(t, s.Flush(context.Background()))

	data, err := blob.Read(context.Background())
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n  \"5\": {\n    \"id\": 5,"), text)
	assert.Contains(t, text, `"date": "2024-05-17 09:30:15"`)
	assert.Contains(t, text, `"direct_url": "http://etd.example/download/5"`)
	assert.Contains(t, text, "Ekonomi & Pembangunan")
}

func TestFlushPropagatesBackendError(t *testing.T) {
	t.Parallel()

	blob := memory.NewCatalogBlob()
	boom := errors.New("disk full")
	blob.FailNext(1, boom)
	s := New(blob, nil)
	s.Put(record(1, "Title"))

	require.ErrorIs(t, s.Flush(context.Background()), boom)
	require.NoError(t, s.Flush(context.Background()))
}

func TestPutReplacesWholesale(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	s.Put(record(3, "Old"))
	replacement := crawler.Record{ID: 3, Title: "New"}
	s.Put(replacement)

	got, ok := s.Get(3)
	require.True(t, ok)
	require.Equal(t, replacement, got)
	require.True(t, s.Contains(3))
	require.False(t, s.Contains(4))
}

func TestQueryOrdersByID(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	for _, id := range []int64{30, 10, 20} {
		s.Put(record(id, "T"))
	}
	got := s.Query(func(rec crawler.Record) bool { return rec.ID != 20 })
	require.Len(t, got, 2)
	require.Equal(t, int64(10), got[0].ID)
	require.Equal(t, int64(30), got[1].ID)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	s.Put(record(5, "Deep Learning for X"))
	s.Put(record(9, "Shallow Nets"))
	s.Put(record(12, "LEARNING Theory"))

	got := s.Search("learning")
	require.Len(t, got, 2)
	require.Equal(t, int64(5), got[0].ID)
	require.Equal(t, int64(12), got[1].ID)

	require.Len(t, s.Search(""), 3)
	require.Empty(t, s.Search("quantum"))
}

func TestRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	for id := int64(1); id <= 15; id++ {
		s.Put(record(id, "T"))
	}
	got := s.Recent(10)
	require.Len(t, got, 10)
	require.Equal(t, int64(15), got[0].ID)
	require.Equal(t, int64(6), got[9].ID)
	require.Len(t, s.Recent(0), 15)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	t.Parallel()

	s := New(memory.NewCatalogBlob(), nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for id := int64(1); id <= 200; id++ {
			s.Put(record(id, "T"))
			if id%10 == 0 {
				assert.NoError(t, s.Flush(ctx))
			}
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_ = s.Search("t")
				_ = s.Contains(50)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 200, s.Count())
}

type failingBackend struct{}

func (failingBackend) Read(context.Context) ([]byte, error) { return nil, errors.New("permission denied") }

func (failingBackend) Write(context.Context, []byte) error { return errors.New("permission denied") }
