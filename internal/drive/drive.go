// Package drive is a minimal Google Drive v3 client covering the three
// operations tocolab needs: multipart notebook upload, media download, and
// folder lookup/creation. Requests carry a bearer token obtained from the
// auth package.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"tocolab/internal/notebook"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	folderMIMEType = "application/vnd.google-apps.folder"
)

// ErrRemote reports a failed or unexpected Drive API response. The push
// and pull operations abort on it without retrying.
var ErrRemote = errors.New("drive request failed")

// Client issues Drive v3 requests. BaseURL and HTTPClient are exported so
// tests can point the client at an httptest server.
type Client struct {
	AccessToken string
	BaseURL     string
	HTTPClient  *http.Client
}

// NewClient returns a client authenticated with the given access token.
func NewClient(accessToken string) *Client {
	return &Client{
		AccessToken: accessToken,
		BaseURL:     defaultBaseURL,
		HTTPClient:  http.DefaultClient,
	}
}

type fileResource struct {
	ID string `json:"id"`
}

type fileList struct {
	Files []fileResource `json:"files"`
}

// Upload serializes the notebook and creates it on Drive in a single
// multipart request. The Colab MIME type makes Drive open the file in
// Colab. Returns the new file's ID.
func (c *Client) Upload(ctx context.Context, nb *notebook.Notebook, name, folderID string) (string, error) {
	content, err := notebook.Serialize(nb)
	if err != nil {
		return "", err
	}

	meta := map[string]interface{}{
		"name":     name + ".ipynb",
		"mimeType": notebook.ColabMIMEType,
	}
	if folderID != "" {
		meta["parents"] = []string{folderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.SetBoundary(uuid.NewString()); err != nil {
		return "", err
	}

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return "", err
	}

	mediaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {notebook.NotebookMIMEType},
	})
	if err != nil {
		return "", err
	}
	if _, err := mediaPart.Write(content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/upload/drive/v3/files?uploadType=multipart&fields=id", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())

	var created fileResource
	if err := c.do(req, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: create response carried no file id", ErrRemote)
	}
	return created.ID, nil
}

// Download fetches the raw notebook bytes for a file ID.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.BaseURL+"/drive/v3/files/"+url.PathEscape(fileID)+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

// FindOrCreateFolder resolves a Drive folder by exact name among
// non-trashed folders, creating it when absent. When multiple folders
// share the name, the first one Drive returns wins; list order is the
// tie-break, intentionally unchanged.
func (c *Client) FindOrCreateFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQueryValue(name), folderMIMEType)

	listURL := c.BaseURL + "/drive/v3/files?" + url.Values{
		"q":      {query},
		"spaces": {"drive"},
		"fields": {"files(id)"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", listURL, nil)
	if err != nil {
		return "", err
	}
	var list fileList
	if err := c.do(req, &list); err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		return list.Files[0].ID, nil
	}

	meta, err := json.Marshal(map[string]string{
		"name":     name,
		"mimeType": folderMIMEType,
	})
	if err != nil {
		return "", err
	}
	req, err = http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/drive/v3/files?fields=id", bytes.NewReader(meta))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	var created fileResource
	if err := c.do(req, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// do sends the request with the bearer token and decodes a JSON response.
func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: bad response body: %v", ErrRemote, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %s %s returned %d: %s",
		ErrRemote, resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, string(body))
}

// escapeQueryValue escapes a value for embedding in a Drive search query
// string literal.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
