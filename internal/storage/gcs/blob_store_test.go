package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "pages"})
	require.ErrorContains(t, err, "storage client is required")

	_, err = New(&storage.Client{}, Config{})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	s, err := New(&storage.Client{}, Config{Bucket: "b", Prefix: "/pages/"})
	require.NoError(t, err)
	require.Equal(t, "pages/adidas/abc.json", s.objectName("/adidas/abc.json"))

	s, err = New(&storage.Client{}, Config{Bucket: "b"})
	require.NoError(t, err)
	require.Equal(t, "adidas/abc.json", s.objectName("adidas/abc.json"))
}

func TestAlreadyExists(t *testing.T) {
	t.Parallel()

	precondition := &googleapi.Error{Code: http.StatusPreconditionFailed}
	require.True(t, alreadyExists(fmt.Errorf("close: %w", precondition)))
	require.False(t, alreadyExists(&googleapi.Error{Code: http.StatusForbidden}))
	require.False(t, alreadyExists(errors.New("network down")))
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	s, err := New(&storage.Client{}, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = s.PutObject(context.Background(), " ", "text/html", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")
}
