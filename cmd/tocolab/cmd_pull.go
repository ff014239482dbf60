package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tocolab/internal/colab"
	"tocolab/internal/config"
	"tocolab/internal/drive"
	"tocolab/internal/notebook"
	"tocolab/internal/render"
	"tocolab/internal/state"
)

var (
	pullLast bool
	pullSave string
	pullRaw  bool
)

// pullCmd downloads an executed notebook and shows its outputs.
var pullCmd = &cobra.Command{
	Use:   "pull [url-or-file-id]",
	Short: "Download an executed notebook from Colab and display results",
	Long: `Download a notebook from Google Drive and render its cell outputs as
terminal text. The target is a Colab URL, a Drive file ID, or - with no
argument - the most recently pushed notebook.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullLast, "last", false, "Pull the most recently pushed notebook")
	pullCmd.Flags().StringVar(&pullSave, "save", "", "Save the executed notebook to a local file")
	pullCmd.Flags().BoolVar(&pullRaw, "raw", false, "Print raw notebook JSON instead of rendered output")
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	locator := ""
	if len(args) == 1 && !pullLast {
		locator = args[0]
	}

	lastPushPath, err := config.LastPushPath()
	if err != nil {
		return err
	}
	store := state.NewFileStore(lastPushPath)

	// Locator resolution happens before credentials or any network call;
	// an unresolvable locator never touches Drive.
	fileID, err := colab.ResolveFileID(locator, store)
	if err != nil {
		return err
	}
	if locator == "" {
		if last, lerr := store.Read(); lerr == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Pulling last pushed notebook: %s\n", last.Name)
		}
	}

	token, err := ensureCredentials(ctx, false)
	if err != nil {
		return err
	}

	data, err := drive.NewClient(token.AccessToken).Download(ctx, fileID)
	if err != nil {
		return err
	}
	logger.Debug("notebook downloaded", zap.String("file_id", fileID), zap.Int("bytes", len(data)))

	nb, err := notebook.Load(data, "")
	if err != nil {
		return err
	}

	if pullSave != "" {
		if err := os.WriteFile(pullSave, data, 0644); err != nil {
			return fmt.Errorf("failed to save notebook: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to %s\n", pullSave)
	}

	if pullRaw {
		cmd.OutOrStdout().Write(data)
		return nil
	}

	render.Notebook(cmd.OutOrStdout(), nb)
	return nil
}
