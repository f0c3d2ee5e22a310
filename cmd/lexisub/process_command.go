package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lexisub/internal/chunk"
	"lexisub/internal/config"
	"lexisub/internal/logging"
	"lexisub/internal/progress"
	"lexisub/internal/workflow"
)

type chunkFlags struct {
	taskID string
	start  float64
	end    float64
	source string
	target string
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.taskID, "task-id", "", "Task identifier (generated when empty)")
	cmd.Flags().Float64Var(&f.start, "start", 0, "Window start offset in seconds")
	cmd.Flags().Float64Var(&f.end, "end", 0, "Window end offset in seconds")
	cmd.Flags().StringVar(&f.source, "source", "", "Spoken language of the media (ISO 639-1)")
	cmd.Flags().StringVar(&f.target, "target", "", "Subtitle language (ISO 639-1)")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
}

func (f *chunkFlags) request(media string) chunk.Request {
	return chunk.Request{
		TaskID:      f.taskID,
		MediaRef:    media,
		StartOffset: f.start,
		EndOffset:   f.end,
		SourceLang:  f.source,
		TargetLang:  f.target,
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var flags chunkFlags
	var outputPath string
	var jsonOutput bool
	var srtOnly bool

	cmd := &cobra.Command{
		Use:   "process <media>",
		Short: "Run one chunk through the pipeline in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := cliLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rec, res, err := processChunk(signalCtx, cfg, flags.request(args[0]), logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(res.SRT), 0o644); err != nil {
					return fmt.Errorf("write subtitles: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOutput:
				return writeJSON(cmd, rec)
			case srtOnly:
				_, err := io.WriteString(out, res.SRT)
				return err
			}
			fmt.Fprintln(out, renderRecord(rec, shouldColorize(out)))
			fmt.Fprintln(out, labelLine("Cues", fmt.Sprintf("%d", len(res.Subtitles))))
			if outputPath != "" {
				fmt.Fprintln(out, labelLine("Subtitles", outputPath))
			}
			if len(res.Vocabulary) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderVocabulary(res.Vocabulary))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the SRT document to this path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full task record as JSON")
	cmd.Flags().BoolVar(&srtOnly, "srt", false, "Print only the SRT document")
	cmd.MarkFlagsMutuallyExclusive("json", "srt")
	return cmd
}

// processChunk builds a single-worker pipeline, runs req to completion and
// returns the terminal record. Stage changes are reported to progressOut.
func processChunk(ctx context.Context, cfg *config.Config, req chunk.Request, logger *slog.Logger, progressOut io.Writer) (progress.Record, workflow.Result, error) {
	pipe, err := workflow.Build(cfg, nil, logger)
	if err != nil {
		return progress.Record{}, workflow.Result{}, err
	}
	defer pipe.Close()

	opts := workflow.ManagerOptionsFromConfig(cfg)
	opts.Workers = 1
	mgr := workflow.NewManager(pipe.Orchestrator, opts, logger)
	if err := mgr.Start(ctx); err != nil {
		return progress.Record{}, workflow.Result{}, err
	}
	defer mgr.Stop()

	submitted, err := mgr.Submit(ctx, req)
	if err != nil {
		return progress.Record{}, workflow.Result{}, err
	}
	taskID := submitted.TaskID

	done := make(chan struct{})
	go reportStages(mgr, taskID, progressOut, done)
	rec, err := mgr.Wait(context.Background(), taskID)
	close(done)
	if err != nil {
		return rec, workflow.Result{}, err
	}
	_, _ = mgr.Take(taskID)

	if rec.Error != nil {
		return rec, workflow.Result{}, fmt.Errorf("task %s failed [%s]: %s", taskID, rec.Error.Category, rec.Error.Message)
	}
	res, ok := rec.Result.(workflow.Result)
	if !ok {
		return rec, workflow.Result{}, errors.New("task completed without a result")
	}
	return rec, res, nil
}

func reportStages(mgr *workflow.Manager, taskID string, out io.Writer, done <-chan struct{}) {
	if out == nil {
		return
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	var last chunk.State
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rec, ok := mgr.Progress(taskID)
			if !ok || rec.Stage == last || rec.Terminal() {
				continue
			}
			last = rec.Stage
			fmt.Fprintf(out, "%s %s (%.0f%%)\n", taskID, rec.Stage, rec.Percent)
		}
	}
}

// cliLogger writes everything to stderr so stdout stays parseable.
func cliLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}
