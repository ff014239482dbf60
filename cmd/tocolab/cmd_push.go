package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tocolab/internal/colab"
	"tocolab/internal/config"
	"tocolab/internal/drive"
	"tocolab/internal/notebook"
	"tocolab/internal/state"
)

var (
	errNoInput      = errors.New("no input provided: pipe code via stdin or pass a file path")
	errEmptyInput   = errors.New("input is empty")
	errFileNotFound = errors.New("file not found")
)

var (
	pushName   string
	pushGPU    bool
	pushTPU    bool
	pushFolder string
	pushNoOpen bool
	pushCopy   bool
)

// pushCmd uploads code as a runnable Colab notebook.
var pushCmd = &cobra.Command{
	Use:   "push [file]",
	Short: "Push code to Google Colab as a runnable notebook",
	Long: `Push a Python file, an existing .ipynb, or piped stdin to Google Drive as
a Colab notebook. Third-party imports are detected and a pip install cell
is prepended automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVarP(&pushName, "name", "n", "", "Notebook title")
	pushCmd.Flags().BoolVar(&pushGPU, "gpu", false, "Set Colab runtime to GPU")
	pushCmd.Flags().BoolVar(&pushTPU, "tpu", false, "Set Colab runtime to TPU")
	pushCmd.Flags().StringVarP(&pushFolder, "folder", "f", "", "Drive folder name to upload into")
	pushCmd.Flags().BoolVar(&pushNoOpen, "no-open", false, "Don't open browser, just print URL")
	pushCmd.Flags().BoolVarP(&pushCopy, "copy", "c", false, "Copy URL to clipboard")
}

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// stdinIsPiped reports whether stdin carries piped data rather than a
// terminal. Mockable for tests.
var stdinIsPiped = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

// pickAccelerator resolves the runtime from flags, falling back to the
// configured default. The empty string means the default CPU runtime.
func pickAccelerator(gpu, tpu bool, fallback string) string {
	switch {
	case gpu:
		return notebook.AcceleratorGPU
	case tpu:
		return notebook.AcceleratorTPU
	default:
		return fallback
	}
}

// readSource resolves the input text, notebook name, and whether the input
// is an already-structured notebook.
func readSource(args []string, nameFlag string) (content, name string, isNotebook bool, err error) {
	if len(args) == 1 {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", "", false, fmt.Errorf("%w: %s", errFileNotFound, path)
			}
			return "", "", false, err
		}
		name = nameFlag
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return string(data), name, filepath.Ext(path) == ".ipynb", nil
	}

	if stdinIsPiped() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", false, err
		}
		name = nameFlag
		if name == "" {
			name = "Untitled"
		}
		return string(data), name, false, nil
	}

	return "", "", false, errNoInput
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, err := config.LoadUserConfig(config.DefaultUserConfigPath())
	if err != nil {
		return err
	}

	accelerator := pickAccelerator(pushGPU, pushTPU, cfg.Accelerator)
	folder := pushFolder
	if folder == "" {
		folder = cfg.Folder
	}

	content, name, isNotebook, err := readSource(args, pushName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return errEmptyInput
	}

	var nb *notebook.Notebook
	if isNotebook {
		nb, err = notebook.Load([]byte(content), accelerator)
	} else {
		nb, err = notebook.New(content, name, accelerator)
	}
	if err != nil {
		return err
	}
	logger.Debug("notebook assembled",
		zap.Int("cells", len(nb.Cells)),
		zap.String("accelerator", accelerator))

	token, err := ensureCredentials(ctx, false)
	if err != nil {
		return err
	}
	client := drive.NewClient(token.AccessToken)

	var folderID string
	if folder != "" {
		folderID, err = client.FindOrCreateFolder(ctx, folder)
		if err != nil {
			return err
		}
		logger.Debug("folder resolved", zap.String("folder", folder), zap.String("id", folderID))
	}

	fileID, err := client.Upload(ctx, nb, name, folderID)
	if err != nil {
		return err
	}
	url := colab.URL(fileID)

	// Record the push so pull --last can find it. A failure here leaves
	// the upload in place; surfacing it beats a silently stale record.
	lastPushPath, err := config.LastPushPath()
	if err != nil {
		return err
	}
	if err := state.NewFileStore(lastPushPath).Write(&state.LastPush{FileID: fileID, Name: name}); err != nil {
		return fmt.Errorf("uploaded %s but failed to record it: %w", fileID, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Uploaded: %s\n", fileID)
	fmt.Fprintf(cmd.ErrOrStderr(), "URL: %s\n", url)

	if pushNoOpen || cfg.NoOpen {
		fmt.Fprintln(cmd.OutOrStdout(), url)
	} else if err := colab.OpenInBrowser(fileID); err != nil {
		logger.Warn("failed to open browser", zap.Error(err))
		fmt.Fprintln(cmd.OutOrStdout(), url)
	}

	if pushCopy {
		if err := clipboardWriteAll(url); err != nil {
			logger.Warn("failed to copy URL to clipboard", zap.Error(err))
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "URL copied to clipboard.")
		}
	}

	return nil
}
