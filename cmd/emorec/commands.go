package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/audio/audiocmd"
	"github.com/edgeimpulse/emotion-go/audio/paudio"
	"github.com/edgeimpulse/emotion-go/ingest"
)

func (a *app) convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert in out",
		Short: "Write a recording as a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Convert(args[0], args[1]); err != nil {
				return fmt.Errorf("converting %s: %w", args[0], err)
			}
			a.log.WithField("path", args[1]).Info("wrote wav file")
			return nil
		},
	}
}

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices of the configured recorder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var devs []audio.Device
			var err error
			if a.conf.Recorder == "portaudio" {
				devs, err = paudio.ListDevices()
			} else {
				devs, err = audiocmd.ListDevices()
			}
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}
			for _, dev := range devs {
				fmt.Fprintf(cmd.OutOrStdout(), "%v: %v\n", dev.ID, dev.Name)
			}
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML, with keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := a.conf.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	})
	return cmd
}

func (a *app) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload file emotion",
		Short: "Upload a recording labelled with an emotion as training data",
		Long: `Upload a recording to the ingestion service, labelled with one of the
emotions: ` + emotionNames() + `.

Requires ingest.api_key and ingest.hmac_key to be configured.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := emotion.Emotion(args[1])
			if e.Index() < 0 {
				return fmt.Errorf("unknown emotion %q, need one of: %s", args[1], emotionNames())
			}
			ic := a.conf.Ingest
			if !ic.Enabled() {
				return fmt.Errorf("uploads not configured, set ingest.api_key and ingest.hmac_key")
			}
			collector, err := ingest.NewCollector(ic.APIKey, ic.HMACKey, ic.BaseURL)
			if err != nil {
				return err
			}
			w, err := audio.DecodeFile(args[0])
			if err != nil {
				return err
			}
			u := &ingest.RecordingUploader{
				Collector:  collector,
				DeviceName: ic.DeviceName,
				Category:   ic.Category,
				Log:        a.log,
			}
			return u.Upload(cmd.Context(), uuid.NewString(), w, e)
		},
	}
}

func emotionNames() string {
	l := make([]string, len(emotion.Emotions))
	for i, e := range emotion.Emotions {
		l[i] = string(e)
	}
	return strings.Join(l, ", ")
}
