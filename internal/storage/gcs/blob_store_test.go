package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "raw-pages"})
	require.ErrorContains(t, err, "client is required")

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket name is required")

	store, err := New(client, Config{Bucket: "raw-pages"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "  ", "text/html", []byte("x"))
	require.ErrorContains(t, err, "path is required")
}
