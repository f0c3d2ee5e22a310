package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lexisub/internal/workflow"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newStatusCommand(ctx),
		newCancelCommand(ctx),
		newResultCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags chunkFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <media>",
		Short: "Queue a chunk on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			rec, err := client.Submit(cmd.Context(), flags.request(args[0]))
			if err != nil {
				return wrapClientError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued task %s\n", rec.TaskID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the task record as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show daemon status, or the progress of one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := client.Get(cmd.Context(), args[0])
				if err != nil {
					return wrapClientError(err, ctx.apiAddress())
				}
				if jsonOutput {
					return writeJSON(cmd, rec)
				}
				fmt.Fprintln(out, renderRecord(rec, shouldColorize(out)))
				return nil
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapClientError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderDaemonStatus(status, colorize))
			if len(status.Dependencies) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderDependencies(status.Dependencies, colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a task at its next stage boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			rec, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return wrapClientError(err, ctx.apiAddress())
			}
			out := cmd.OutOrStdout()
			if rec.Terminal() {
				fmt.Fprintf(out, "Task %s already %s\n", rec.TaskID, rec.Stage)
				return nil
			}
			fmt.Fprintf(out, "Cancellation requested for task %s (currently %s)\n", rec.TaskID, rec.Stage)
			return nil
		},
	}
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Collect the output of a finished task from the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			var res workflow.Result
			rec, err := client.Result(cmd.Context(), args[0], &res)
			if err != nil {
				return wrapClientError(err, ctx.apiAddress())
			}
			if rec.Error != nil {
				return fmt.Errorf("task %s failed [%s]: %s", rec.TaskID, rec.Error.Category, rec.Error.Message)
			}
			if jsonOutput {
				return writeJSON(cmd, res)
			}
			return writeResult(cmd.OutOrStdout(), res, outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the SRT document to this path instead of stdout")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func writeResult(out io.Writer, res workflow.Result, outputPath string) error {
	if outputPath == "" {
		_, err := io.WriteString(out, res.SRT)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(res.SRT), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	fmt.Fprintf(out, "Wrote %d cues to %s\n", len(res.Subtitles), outputPath)
	if len(res.Vocabulary) > 0 {
		fmt.Fprintln(out, renderVocabulary(res.Vocabulary))
	}
	return nil
}

