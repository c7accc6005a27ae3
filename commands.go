package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lecture_builder/generator"
	"lecture_builder/publisher"
)

func newIndexesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "List the account's indexes keyed by name, or show the one selected with --index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.newHandler(false)
			if err != nil {
				return err
			}
			if h.IndexID() != "" {
				idx, err := h.ResolveIndex(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd, idx)
			}
			indexes, err := h.ListIndexes(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, indexes)
		},
	}
}

func newFeatureCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		featureCommand(ctx, "summary", "Summarize the video", (*generator.Handler).GenerateSummary),
		featureCommand(ctx, "gist", "Generate title, topics and hashtags", (*generator.Handler).GenerateGist),
		featureCommand(ctx, "chapters", "Split the video into chapters", (*generator.Handler).GenerateChapters),
		featureCommand(ctx, "takeaways", "List key takeaways", (*generator.Handler).GenerateKeyTakeaways),
		featureCommand(ctx, "pacing", "Recommend pacing fixes", (*generator.Handler).GeneratePacingRecommendations),
		featureCommand(ctx, "engagement", "Suggest engagement moments", (*generator.Handler).GenerateEngagement),
	}
}

func featureCommand[T any](ctx *commandContext, use, short string, gen func(*generator.Handler, context.Context) (T, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.newHandler(true)
			if err != nil {
				return err
			}
			out, err := gen(h, cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}
}

func newQuizCommand(ctx *commandContext) *cobra.Command {
	var chaptersFile string
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Write quiz questions from chapters",
		Long: "Write quiz questions from chapters. Without --chapters-file the chapters\n" +
			"are generated from the video first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.newHandler(true)
			if err != nil {
				return err
			}
			var chapters []generator.Chapter
			if chaptersFile != "" {
				chapters, err = loadChapters(chaptersFile)
				if err != nil {
					return err
				}
			} else {
				res, err := h.GenerateChapters(cmd.Context())
				if err != nil {
					return err
				}
				if !res.Valid {
					return errors.New("chapters could not be generated; pass --chapters-file")
				}
				chapters = res.Value.Chapters
			}
			res, err := h.GenerateQuizQuestions(cmd.Context(), chapters)
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&chaptersFile, "chapters-file", "", "JSON file with chapters (an array or {\"chapters\": [...]})")
	return cmd
}

// loadChapters reads either a bare chapter array or a Chapters object.
func loadChapters(path string) ([]generator.Chapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chapters: %w", err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var chapters []generator.Chapter
		if err := json.Unmarshal(data, &chapters); err != nil {
			return nil, fmt.Errorf("parse chapters: %w", err)
		}
		return chapters, nil
	}
	var wrapped generator.Chapters
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse chapters: %w", err)
	}
	return wrapped.Chapters, nil
}

func newStreamCommand(ctx *commandContext) *cobra.Command {
	var streamType, prompt string
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream an open-ended analysis as JSON envelopes, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.newHandler(true)
			if err != nil {
				return err
			}
			var last generator.StreamMessage
			for raw := range h.Stream(cmd.Context(), streamType, prompt) {
				fmt.Fprintln(cmd.OutOrStdout(), raw)
				if last, err = generator.DecodeStreamMessage(raw); err != nil {
					return err
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if last.Status == generator.StatusError {
				return fmt.Errorf("stream %s failed: %s", streamType, last.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&streamType, "type", "analysis", "Envelope type label")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt to run against the video")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate every lecture artifact and optionally publish HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ctx.newHandler(true)
			if err != nil {
				return err
			}
			sess := generator.NewSession(generator.NewSessionID(), h)
			lec, err := sess.Build(cmd.Context())
			if err != nil {
				return err
			}
			if outPath != "" {
				written, err := publisher.Publish(cmd.Context(), lec, outPath)
				if err != nil {
					return err
				}
				ctx.log().Info("lecture published", zap.String("path", written), zap.String("session_id", sess.ID))
			}
			return writeJSON(cmd, lec)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the lecture as an HTML document to this path")
	return cmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
