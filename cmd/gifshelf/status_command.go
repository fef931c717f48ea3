package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type dependencyPayload struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail"`
}

type statusPayload struct {
	Running      bool                `json:"running"`
	StartedAt    string              `json:"startedAt"`
	CatalogPath  string              `json:"catalogPath"`
	Images       int                 `json:"images"`
	Folders      int                 `json:"folders"`
	DiskTotal    uint64              `json:"diskTotalBytes"`
	DiskFree     uint64              `json:"diskFreeBytes"`
	Dependencies []dependencyPayload `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and catalog counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status statusPayload
			if err := ctx.apiGet("/api/status", &status); err != nil {
				return err
			}

			rows := [][]string{
				{"Running", fmt.Sprintf("%t", status.Running)},
				{"Started", status.StartedAt},
				{"Catalog", status.CatalogPath},
				{"Images", fmt.Sprintf("%d", status.Images)},
				{"Folders", fmt.Sprintf("%d", status.Folders)},
				{"Disk free", formatBytes(status.DiskFree)},
				{"Disk total", formatBytes(status.DiskTotal)},
			}
			for _, dep := range status.Dependencies {
				value := "available"
				if !dep.Available {
					value = "missing: " + dep.Detail
				}
				rows = append(rows, []string{dep.Name, value})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
