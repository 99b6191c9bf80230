// Package config loads emorec settings from defaults, a YAML file,
// EMOREC_ environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables, eg EMOREC_LOG_LEVEL.
const EnvPrefix = "EMOREC"

type Display struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // Empty for stderr.
}

// Ingest configures uploading classified recordings. Uploads are enabled
// when both keys are set.
type Ingest struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	HMACKey    string `mapstructure:"hmac_key" yaml:"hmac_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Category   string `mapstructure:"category" yaml:"category"`
	DeviceName string `mapstructure:"device_name" yaml:"device_name"`
}

// Enabled returns whether uploads are configured.
func (i Ingest) Enabled() bool {
	return i.APIKey != "" && i.HMACKey != ""
}

type Root struct {
	Model     string  `mapstructure:"model" yaml:"model"`
	Recording string  `mapstructure:"recording" yaml:"recording"`
	Icons     string  `mapstructure:"icons" yaml:"icons"`
	Display   Display `mapstructure:"display" yaml:"display"`
	Recorder  string  `mapstructure:"recorder" yaml:"recorder"` // sox, rec, arecord or portaudio.
	Device    string  `mapstructure:"device" yaml:"device"`
	TraceDir  string  `mapstructure:"trace_dir" yaml:"trace_dir"`
	StateDir  string  `mapstructure:"state_dir" yaml:"state_dir"`
	Log       Log     `mapstructure:"log" yaml:"log"`
	Ingest    Ingest  `mapstructure:"ingest" yaml:"ingest"`
}

// PermissionPath is the marker file for the microphone permission.
func (r *Root) PermissionPath() string {
	return filepath.Join(r.StateDir, "microphone-permission")
}

// YAML returns the configuration as YAML, with ingest keys masked.
func (r *Root) YAML() ([]byte, error) {
	c := *r
	if c.Ingest.APIKey != "" {
		c.Ingest.APIKey = "***"
	}
	if c.Ingest.HMACKey != "" {
		c.Ingest.HMACKey = "***"
	}
	return yaml.Marshal(&c)
}

// Dir returns the directory searched for emorec.yaml.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "emorec")
	}
	return ".emorec"
}

func downloadsDir() string {
	if dir := os.Getenv("XDG_DOWNLOAD_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return os.TempDir()
}

func cacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "emorec")
	}
	return os.TempDir()
}

// SetDefaults sets the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("model", filepath.Join(cacheDir(), "model.eim"))
	v.SetDefault("recording", filepath.Join(downloadsDir(), "recording.wav"))
	v.SetDefault("icons", filepath.Join(Dir(), "icons"))
	v.SetDefault("display.path", filepath.Join(os.TempDir(), "emorec-emotion.png"))
	v.SetDefault("display.width", 256)
	v.SetDefault("display.height", 256)
	v.SetDefault("recorder", "sox")
	v.SetDefault("device", "")
	v.SetDefault("trace_dir", "")
	v.SetDefault("state_dir", Dir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("ingest.api_key", "")
	v.SetDefault("ingest.hmac_key", "")
	v.SetDefault("ingest.base_url", "")
	v.SetDefault("ingest.category", "split")
	v.SetDefault("ingest.device_name", "")
}

// Load reads configuration into v and returns it. If file is empty,
// emorec.yaml is looked up in Dir and the working directory, and a missing
// file is not an error.
func Load(v *viper.Viper, file string) (*Root, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("emorec")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %v", err)
		}
	}

	var r Root
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("parsing config: %v", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Root) validate() error {
	switch r.Recorder {
	case "sox", "rec", "arecord", "portaudio":
	default:
		return fmt.Errorf("unknown recorder %q, need one of: sox, rec, arecord, portaudio", r.Recorder)
	}
	switch r.Ingest.Category {
	case "split", "training", "testing":
	default:
		return fmt.Errorf("invalid ingest category %q, need one of: split, training, testing", r.Ingest.Category)
	}
	if r.Recording == "" {
		return fmt.Errorf("missing recording path")
	}
	return nil
}
