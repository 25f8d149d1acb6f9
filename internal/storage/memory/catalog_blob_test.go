package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

func TestCatalogBlobRoundTrip(t *testing.T) {
	t.Parallel()

	blob := NewCatalogBlob()
	ctx := context.Background()
	_, err := blob.Read(ctx)
	require.ErrorIs(t, err, crawler.ErrBackendNotFound)

	payload := []byte(`{"1":{}}`)
	require.NoError(t, blob.Write(ctx, payload))
	payload[0] = 'x'

	got, err := blob.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"1":{}}`, string(got))
	require.Equal(t, 1, blob.Writes())
}

func TestCatalogBlobFailNext(t *testing.T) {
	t.Parallel()

	blob := NewCatalogBlobWith([]byte(`{}`))
	boom := errors.New("disk full")
	blob.FailNext(1, boom)

	require.ErrorIs(t, blob.Write(context.Background(), []byte(`{"2":{}}`)), boom)
	got, err := blob.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, `{}`, string(got))

	require.NoError(t, blob.Write(context.Background(), []byte(`{"2":{}}`)))
	require.Equal(t, 1, blob.Writes())
}
