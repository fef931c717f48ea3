package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gifshelf/internal/catalog"
)

type catalogPayload struct {
	Images  []catalog.Image  `json:"images"`
	Folders []catalog.Folder `json:"folders"`
}

func newImagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List catalog images",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat catalogPayload
			if err := ctx.apiGet("/api/catalog", &cat); err != nil {
				return err
			}

			folderNames := make(map[string]string, len(cat.Folders))
			for _, folder := range cat.Folders {
				folderNames[folder.ID] = folder.Name
			}

			rows := make([][]string, 0, len(cat.Images))
			for _, image := range cat.Images {
				folder := ""
				if image.FolderID != nil {
					folder = folderNames[*image.FolderID]
				}
				rendered := ""
				if image.HasArtifact() {
					rendered = "yes"
				}
				rows = append(rows, []string{
					image.ID,
					image.Name(),
					folder,
					strings.Join(image.Tags, ","),
					rendered,
					image.CreatedAt.Format("2006-01-02 15:04"),
				})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No images in the catalog")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Folder", "Tags", "Rendered", "Created"}, rows))
			return nil
		},
	}
}

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "List and manage folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat catalogPayload
			if err := ctx.apiGet("/api/catalog", &cat); err != nil {
				return err
			}

			counts := make(map[string]int)
			for _, image := range cat.Images {
				if image.FolderID != nil {
					counts[*image.FolderID]++
				}
			}

			rows := make([][]string, 0, len(cat.Folders))
			for _, folder := range cat.Folders {
				color := ""
				if folder.Color != nil {
					color = *folder.Color
				}
				rows = append(rows, []string{
					folder.ID,
					folder.Name,
					color,
					fmt.Sprintf("%d", counts[folder.ID]),
				})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No folders in the catalog")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Color", "Images"}, rows))
			return nil
		},
	}

	foldersCmd.AddCommand(newFolderCreateCommand(ctx))
	foldersCmd.AddCommand(newFolderDeleteCommand(ctx))
	return foldersCmd
}

func newFolderCreateCommand(ctx *commandContext) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"name": args[0]}
			if strings.TrimSpace(color) != "" {
				payload["color"] = color
			}
			var folder catalog.Folder
			if err := ctx.apiPost("/api/folders", payload, &folder); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (%s)\n", folder.Name, folder.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "Display color for the folder")
	return cmd
}

func newFolderDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete a folder, leaving its images unfiled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.apiDo("DELETE", "/api/folders/"+args[0], nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := decodeAPIResponse(resp, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s\n", args[0])
			return nil
		},
	}
}
