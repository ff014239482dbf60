package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tocolab/internal/notebook"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-token")
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()
	return c
}

func TestUpload(t *testing.T) {
	nb, err := notebook.New("import numpy\nprint(1)", "demo", "")
	require.NoError(t, err)

	var gotPath, gotContentType, gotAuth, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		json.NewEncoder(w).Encode(map[string]string{"id": "new-file-id"})
	})

	id, err := c.Upload(context.Background(), nb, "demo", "")
	require.NoError(t, err)
	assert.Equal(t, "new-file-id", id)

	assert.Contains(t, gotPath, "/upload/drive/v3/files")
	assert.Contains(t, gotPath, "uploadType=multipart")
	assert.Contains(t, gotContentType, "multipart/related")
	assert.Equal(t, "Bearer test-token", gotAuth)

	assert.Contains(t, gotBody, `"demo.ipynb"`)
	assert.Contains(t, gotBody, notebook.ColabMIMEType)
	assert.Contains(t, gotBody, notebook.NotebookMIMEType)
	assert.Contains(t, gotBody, "pip install -q numpy")
	assert.NotContains(t, gotBody, "parents")
}

func TestUpload_IntoFolder(t *testing.T) {
	nb, err := notebook.New("print(1)", "", "")
	require.NoError(t, err)

	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		json.NewEncoder(w).Encode(map[string]string{"id": "id-in-folder"})
	})

	id, err := c.Upload(context.Background(), nb, "nb", "folder-123")
	require.NoError(t, err)
	assert.Equal(t, "id-in-folder", id)
	assert.Contains(t, gotBody, `"parents":["folder-123"]`)
}

func TestUpload_RemoteError(t *testing.T) {
	nb, err := notebook.New("print(1)", "", "")
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "insufficient permissions"}`, http.StatusForbidden)
	})

	_, err = c.Upload(context.Background(), nb, "nb", "")
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "403")
}

func TestUpload_MissingID(t *testing.T) {
	nb, err := notebook.New("print(1)", "", "")
	require.NoError(t, err)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err = c.Upload(context.Background(), nb, "nb", "")
	assert.ErrorIs(t, err, ErrRemote)
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files/file-42", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"nbformat": 4}`)
	})

	data, err := c.Download(context.Background(), "file-42")
	require.NoError(t, err)
	assert.Equal(t, `{"nbformat": 4}`, string(data))
}

func TestDownload_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRemote)
}

func TestFindOrCreateFolder(t *testing.T) {
	t.Run("existing folder found, first match wins", func(t *testing.T) {
		var creates int
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "POST" {
				creates++
				return
			}
			q := r.URL.Query().Get("q")
			assert.Contains(t, q, "name = 'projects'")
			assert.Contains(t, q, "trashed = false")
			assert.Contains(t, q, folderMIMEType)
			// Two same-named folders: the store's order decides.
			json.NewEncoder(w).Encode(map[string]interface{}{
				"files": []map[string]string{{"id": "first-id"}, {"id": "second-id"}},
			})
		})

		id, err := c.FindOrCreateFolder(context.Background(), "projects")
		require.NoError(t, err)
		assert.Equal(t, "first-id", id)
		assert.Zero(t, creates, "existing folder must not trigger a create")
	})

	t.Run("missing folder created", func(t *testing.T) {
		var createBody string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "GET" {
				json.NewEncoder(w).Encode(map[string]interface{}{"files": []interface{}{}})
				return
			}
			body, _ := io.ReadAll(r.Body)
			createBody = string(body)
			json.NewEncoder(w).Encode(map[string]string{"id": "created-id"})
		})

		id, err := c.FindOrCreateFolder(context.Background(), "new-folder")
		require.NoError(t, err)
		assert.Equal(t, "created-id", id)
		assert.Contains(t, createBody, `"name":"new-folder"`)
		assert.Contains(t, createBody, folderMIMEType)
	})

	t.Run("quote in folder name escaped", func(t *testing.T) {
		var gotQuery string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"files": []map[string]string{{"id": "x"}},
			})
		})

		_, err := c.FindOrCreateFolder(context.Background(), "bob's stuff")
		require.NoError(t, err)
		assert.Contains(t, gotQuery, `bob\'s stuff`)
	})

	t.Run("list error propagates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		_, err := c.FindOrCreateFolder(context.Background(), "x")
		assert.ErrorIs(t, err, ErrRemote)
	})
}

func TestUploadBoundaryUnique(t *testing.T) {
	nb, err := notebook.New("print(1)", "", "")
	require.NoError(t, err)

	boundaries := make(map[string]bool)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		boundaries[strings.TrimPrefix(ct, "multipart/related; boundary=")] = true
		json.NewEncoder(w).Encode(map[string]string{"id": "id"})
	})

	for i := 0; i < 3; i++ {
		_, err := c.Upload(context.Background(), nb, "nb", "")
		require.NoError(t, err)
	}
	assert.Len(t, boundaries, 3)
}
