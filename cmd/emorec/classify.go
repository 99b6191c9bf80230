package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/present"
)

func (a *app) classifyCommand() *cobra.Command {
	var trend int
	cmd := &cobra.Command{
		Use:   "classify file ...",
		Short: "Classify the emotion in existing recordings, raw or WAV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.classify(cmd.Context(), cmd.OutOrStdout(), args, trend)
		},
	}
	cmd.Flags().IntVar(&trend, "trend", 0, "also print the moving average emotion over this many recordings (only if >0)")
	return cmd
}

func (a *app) classify(ctx context.Context, out io.Writer, paths []string, trendSize int) error {
	var trend *emotion.Trend
	if trendSize > 0 {
		var err error
		trend, err = emotion.NewTrend(trendSize)
		if err != nil {
			return err
		}
	}

	classifier, closeModel := a.loadModel()
	defer closeModel()
	if classifier == nil {
		return fmt.Errorf("%w: %s", emotion.ErrModelLoad, a.conf.Model)
	}

	ui := present.NewUI(a.terminal(out))
	pipeline, closePipeline, err := a.newPipeline(ui, classifier)
	if err != nil {
		return err
	}
	defer closePipeline()

	for _, path := range paths {
		id := uuid.NewString()
		log := a.log.WithFields(logrus.Fields{"session": id, "path": path})
		r, err := pipeline.Process(ctx, id, path, log)
		if err != nil {
			return fmt.Errorf("classifying %s: %w", path, err)
		}
		ui.Flush()
		if trend != nil {
			avg := trend.Update(r.Scores)
			fmt.Fprintf(out, "Over the last %d recordings: %s\n", trendSize, present.Message(avg.Best()))
		}
	}
	return nil
}
