// Package colab builds and parses Colab notebook URLs and resolves pull
// locators to Drive file IDs.
package colab

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"tocolab/internal/config"
	"tocolab/internal/state"
)

// Matches Colab URLs like:
//
//	https://colab.research.google.com/drive/1AbCdEfGhIjKlMnOpQrStUvWxYz
//	https://colab.google.com/drive/1AbCdEfGhIjKlMnOpQrStUvWxYz
//
// with optional query params (?usp=sharing, #scrollTo=...).
var colabURLRe = regexp.MustCompile(`https?://colab(?:\.research)?\.google\.com/drive/([A-Za-z0-9_-]+)`)

// Bare Drive file IDs are alphanumeric plus hyphens/underscores, typically
// 20-60 chars.
var bareIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

// ErrBadLocator reports a locator that is neither a Colab URL nor a file ID.
var ErrBadLocator = errors.New("cannot parse file ID")

// URL returns the Colab URL for a Drive file ID.
func URL(fileID string) string {
	return config.ColabBaseURL + "/" + fileID
}

// ParseFileID extracts a Drive file ID from a Colab URL or a bare ID.
func ParseFileID(source string) (string, error) {
	if m := colabURLRe.FindStringSubmatch(source); m != nil {
		return m[1], nil
	}
	trimmed := strings.TrimSpace(source)
	if bareIDRe.MatchString(trimmed) {
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadLocator, source)
}

// ResolveFileID resolves a pull locator to a file ID. Precedence is
// explicit ID, then URL, then the persisted last push. An empty locator
// with no recorded push is a resolution error; nothing falls back
// silently, and no network access happens here.
func ResolveFileID(locator string, store state.Store) (string, error) {
	if locator != "" {
		return ParseFileID(locator)
	}
	last, err := store.Read()
	if err != nil {
		return "", err
	}
	return last.FileID, nil
}

// startCommand is a package-level variable to allow mocking in tests.
var startCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenInBrowser opens the notebook in the default browser. The spawned
// process is not waited on.
func OpenInBrowser(fileID string) error {
	url := URL(fileID)
	switch runtime.GOOS {
	case "windows":
		return startCommand("cmd", "/c", "start", url)
	case "darwin":
		return startCommand("open", url)
	default:
		return startCommand("xdg-open", url)
	}
}
