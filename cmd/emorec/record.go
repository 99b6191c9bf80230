package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/audio/audiocmd"
	"github.com/edgeimpulse/emotion-go/audio/paudio"
	"github.com/edgeimpulse/emotion-go/present"
	"github.com/edgeimpulse/emotion-go/session"
)

func (a *app) recordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record and classify speech: enter starts and stops recording, q quits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Handle signals, so the model process and recorder are cleaned up.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.record(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// opener returns the Opener for the configured capture backend.
func (a *app) opener() session.Opener {
	return func() (audio.Recorder, error) {
		if a.conf.Recorder == "portaudio" {
			if a.conf.Device != "" {
				a.log.WithField("device", a.conf.Device).Warn("portaudio records from the default input device, ignoring device")
			}
			r, err := paudio.NewRecorder()
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		r, err := audiocmd.NewRecorder(&audiocmd.RecorderOpts{
			RecordProgram: a.conf.Recorder,
			DeviceID:      a.conf.Device,
			Log:           a.log,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func (a *app) record(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	classifier, closeModel := a.loadModel()
	defer closeModel()

	term := a.terminal(out)
	ui := present.NewUI(term)
	pipeline, closePipeline, err := a.newPipeline(ui, classifier)
	if err != nil {
		return err
	}
	defer closePipeline()

	if err := os.MkdirAll(filepath.Dir(a.conf.Recording), 0o755); err != nil {
		a.log.WithError(err).Warn("creating recording directory")
	}

	permission := &session.FilePermission{Path: a.conf.PermissionPath()}
	ctrl := session.NewController(ctx, a.opener(), permission, pipeline, a.conf.Recording, a.log)

	launch(ui, permission)

	// Input lines are handled on the UI goroutine. End of input quits.
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := scanner.Text()
			quit := make(chan bool, 1)
			ui.Post(func(d present.Display) {
				quit <- handleLine(d, ctrl, permission, line, a.log)
			})
			select {
			case q := <-quit:
				if q {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	ui.Run(ctx)

	ctrl.Stop(term)
	ctrl.Wait()
	ui.Flush()
	return nil
}

// launch shows the initial screen, and asks for microphone permission
// unless it was granted before.
func launch(ui *present.UI, permission session.Permission) {
	ui.Post(func(d present.Display) { d.SetButton(present.StartLabel) })
	if !permission.Granted() {
		ui.Post(permission.Request)
	}
}

// handleLine acts on a line of input: it answers a pending permission
// request, or quits on "q", or presses the toggle button. It returns whether
// to quit.
func handleLine(d present.Display, ctrl *session.Controller, permission *session.FilePermission, line string, log logrus.FieldLogger) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	if permission.Pending() {
		allow := line == "y" || line == "yes"
		if err := permission.Answer(d, allow); err != nil {
			log.WithError(err).Error("microphone permission")
		}
		return false
	}
	if line == "q" || line == "quit" {
		return true
	}
	ctrl.Toggle(d)
	return false
}
