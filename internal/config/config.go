// Package config holds the on-disk configuration for tocolab.
// Everything lives under ~/.config/tocolab: the user-supplied OAuth client
// secrets, the cached token, the optional defaults file, and the last-push
// record.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const appName = "tocolab"

// Exit codes reported by the CLI.
const (
	ExitSuccess      = 0
	ExitUserError    = 1
	ExitAuthError    = 2
	ExitNetworkError = 3
)

// Scopes requested from Google. drive.file limits access to files the app
// itself created.
var Scopes = []string{"https://www.googleapis.com/auth/drive.file"}

// ColabBaseURL is the prefix for notebook URLs.
const ColabBaseURL = "https://colab.research.google.com/drive"

// userHomeDir is a package-level variable to allow overriding in tests.
var userHomeDir = os.UserHomeDir

// Dir returns the tocolab configuration directory.
func Dir() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// CredentialsPath returns the path of the user-supplied OAuth client
// secrets file.
func CredentialsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.json"), nil
}

// TokenPath returns the path of the cached OAuth token.
func TokenPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token.json"), nil
}

// LastPushPath returns the path of the last-push record.
func LastPushPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "last_push.json"), nil
}

// UserConfig holds optional user defaults from ~/.config/tocolab/config.json.
// All fields are optional; zero values mean "no default".
type UserConfig struct {
	// Folder is the default Drive folder name to upload into.
	Folder string `json:"folder,omitempty"`

	// Accelerator is the default runtime ("GPU" or "TPU").
	Accelerator string `json:"accelerator,omitempty"`

	// NoOpen disables opening the browser after a push.
	NoOpen bool `json:"no_open,omitempty"`
}

// DefaultUserConfigPath returns the path of the defaults file.
func DefaultUserConfigPath() string {
	dir, err := Dir()
	if err != nil {
		return filepath.Join(".config", appName, "config.json")
	}
	return filepath.Join(dir, "config.json")
}

// LoadUserConfig reads the defaults file. A missing file is not an error;
// it yields an empty config.
func LoadUserConfig(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to the given path, creating parent directories.
func (c *UserConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
