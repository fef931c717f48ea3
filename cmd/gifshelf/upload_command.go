package main

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gifshelf/internal/catalog"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var displayName string
	var folderID string

	cmd := &cobra.Command{
		Use:   "upload <image-file>",
		Short: "Upload an image into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("image", filepath.Base(args[0]))
			if err != nil {
				return err
			}
			if _, err := part.Write(data); err != nil {
				return err
			}
			if strings.TrimSpace(displayName) != "" {
				if err := mw.WriteField("name", displayName); err != nil {
					return err
				}
			}
			if strings.TrimSpace(folderID) != "" {
				if err := mw.WriteField("folderId", folderID); err != nil {
					return err
				}
			}
			if err := mw.Close(); err != nil {
				return err
			}

			resp, err := ctx.apiDoRaw("POST", "/api/images", mw.FormDataContentType(), &buf)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var image catalog.Image
			if err := decodeAPIResponse(resp, &image); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s (id %s)\n",
				args[0], image.Filename, image.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name for the image")
	cmd.Flags().StringVar(&folderID, "folder", "", "Folder ID to file the image under")
	return cmd
}
