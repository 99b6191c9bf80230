// Command emorec records a short clip from the microphone, classifies the
// emotion in the speaker's voice with a model process, and shows the result.
//
// Examples:
//
//	# Record interactively. Press enter to start and stop, q to quit.
//	emorec record --model ~/models/emotion.eim
//
//	# Classify an existing recording.
//	emorec classify ~/Downloads/recording.wav
//
//	# Wrap a raw recording in a WAV container.
//	emorec convert ~/Downloads/recording.wav /tmp/recording-riff.wav
//
//	# Upload a recording as training data for "happy".
//	emorec upload ~/Downloads/recording.wav happy
//
//	# List audio devices, to be used with --device.
//	emorec devices
//
//	# Show the effective configuration.
//	emorec config dump
package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/config"
)

// app is the state shared by all commands, set up before each command runs.
type app struct {
	v       *viper.Viper
	cfgFile string

	conf      *config.Root
	log       *logrus.Logger
	logCloser io.Closer
}

func main() {
	os.Exit(main0(os.Args[1:]))
}

func main0(args []string) int {
	a := &app{v: viper.New()}
	root := a.rootCommand()
	root.SetArgs(args)
	err := root.Execute()
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	if err != nil {
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "emorec",
		Short:         "Recognize emotion in recorded speech",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default emorec.yaml in "+config.Dir()+")")
	flags.String("model", "", "path to the model executable (.eim)")
	flags.String("recording", "", "path the recording is written to")
	flags.String("icons", "", "directory with an icon per emotion, eg sad.png")
	flags.String("recorder", "", "capture backend: sox, rec, arecord or portaudio")
	flags.String("device", "", "capture device ID as listed by the devices command, empty for the default microphone")
	flags.String("trace-dir", "", "if set, store model requests and responses in the named directory")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	for key, name := range map[string]string{
		"model":     "model",
		"recording": "recording",
		"icons":     "icons",
		"recorder":  "recorder",
		"device":    "device",
		"trace_dir": "trace-dir",
		"log.level": "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		a.recordCommand(),
		a.classifyCommand(),
		a.convertCommand(),
		a.uploadCommand(),
		a.devicesCommand(),
		a.configCommand(),
	)
	return root
}

func (a *app) setup() error {
	conf, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	log, closer, err := config.NewLogger(conf.Log)
	if err != nil {
		return err
	}
	a.conf = conf
	a.log = log
	a.logCloser = closer
	return nil
}

// loadModel starts the model process. On failure the error is logged and
// a nil classifier is returned: the application keeps running without
// classification. Callers must call the returned close function.
func (a *app) loadModel() (*emotion.Classifier, func()) {
	runner, err := emotion.LoadModel(a.conf.Model, &emotion.RunnerOpts{
		TraceDir: a.conf.TraceDir,
		Log:      a.log,
	})
	if err != nil {
		a.log.WithError(err).WithField("model", a.conf.Model).Error("classification unavailable")
		return nil, func() {}
	}
	c, err := emotion.NewClassifier(runner)
	if err != nil {
		runner.Close()
		a.log.WithError(err).WithField("model", a.conf.Model).Error("classification unavailable")
		return nil, func() {}
	}
	a.log.WithFields(logrus.Fields{
		"project": runner.Project().String(),
		"model":   runner.ModelParameters().String(),
	}).Info("loaded model")
	return c, func() { runner.Close() }
}
