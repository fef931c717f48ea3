package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gifshelf/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var folderIDs []string
	var tags []string
	var all bool
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export rendered GIFs as a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(folderIDs) == 0 && len(tags) == 0 {
				return fmt.Errorf("nothing selected: pass --all, --folder, or --tag")
			}

			sel := export.Selection{FolderIDs: folderIDs, Tags: tags, All: all}
			payload, err := json.Marshal(sel)
			if err != nil {
				return err
			}

			resp, err := ctx.apiDo("POST", "/api/export", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return decodeAPIResponse(resp, nil)
			}

			target := strings.TrimSpace(output)
			if target == "" {
				target = export.ArchiveFilename()
			}
			file, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create archive file: %w", err)
			}
			defer file.Close()

			written, err := io.Copy(file, resp.Body)
			if err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", target, formatBytes(uint64(written)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&folderIDs, "folder", nil, "Folder IDs to export")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags to export")
	cmd.Flags().BoolVar(&all, "all", false, "Export every rendered image")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive destination path")
	return cmd
}
