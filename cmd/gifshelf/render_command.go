package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gifshelf/internal/renderqueue"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "render <image-id>",
		Short: "Queue a GIF render for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID := args[0]
			var job renderqueue.Job
			if err := ctx.apiPost("/api/images/"+imageID+"/render", nil, &job); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !wait {
				fmt.Fprintf(out, "Render %s for image %s\n", job.Status, imageID)
				return nil
			}

			for job.Status == renderqueue.StatusQueued || job.Status == renderqueue.StatusRunning {
				time.Sleep(250 * time.Millisecond)
				if err := ctx.apiGet("/api/images/"+imageID+"/render", &job); err != nil {
					return err
				}
			}
			if job.Status == renderqueue.StatusFailed {
				return fmt.Errorf("render failed: %s", job.Error)
			}
			fmt.Fprintf(out, "Rendered %s\n", job.Artifact)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the render finishes")
	return cmd
}
