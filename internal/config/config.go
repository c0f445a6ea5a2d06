// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/identify"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logger"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/pipeline"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/segments"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/speakers"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Transcriber backends.
const (
	TranscriberSidecar = "sidecar"
	TranscriberWhisper = "whisper"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port" validate:"min=1,max=65535"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Logging logger.Config `yaml:"logging"`

	Whisper struct {
		Model     string `yaml:"model"`
		ModelPath string `yaml:"model_path"`
		Python    string `yaml:"python"`
		Language  string `yaml:"language"`
	} `yaml:"whisper"`

	Sidecar struct {
		URL            string `yaml:"url" validate:"required,url"`
		TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1"`
		Retries        int    `yaml:"retries" validate:"min=1"`
	} `yaml:"sidecar"`

	// Transcriber selects which backend transcribes speaker groups.
	Transcriber string `yaml:"transcriber" validate:"oneof=sidecar whisper"`

	FFmpeg struct {
		Binary string `yaml:"binary"`
	} `yaml:"ffmpeg"`

	Workers struct {
		Count     int `yaml:"count" validate:"min=1"`
		QueueSize int `yaml:"queue_size" validate:"min=1"`
	} `yaml:"workers"`

	Storage struct {
		TempDir     string `yaml:"temp_dir" validate:"required"`
		OutputDir   string `yaml:"output_dir" validate:"required"`
		Database    string `yaml:"database" validate:"required"`
		Voiceprints string `yaml:"voiceprints" validate:"required"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes" validate:"min=1"`
		MaxAgeHours     int `yaml:"max_age_hours" validate:"min=1"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb" validate:"min=1"`
	} `yaml:"limits"`

	Pipeline struct {
		Normalize          bool    `yaml:"normalize"`
		TurnMaxGap         float64 `yaml:"turn_max_gap" validate:"gte=0"`
		TurnMinDuration    float64 `yaml:"turn_min_duration" validate:"gte=0"`
		SegmentMaxGap      float64 `yaml:"segment_max_gap" validate:"gte=0"`
		SegmentMinDuration float64 `yaml:"segment_min_duration" validate:"gte=0"`
		GapThreshold       float64 `yaml:"gap_threshold" validate:"gt=0"`
	} `yaml:"pipeline"`

	Identification identify.Config `yaml:"identification"`

	Clustering speakers.ClusterConfig `yaml:"clustering"`
}

// Default returns a configuration with every field set to its stock value.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.Host = "0.0.0.0"
	c.Logging.ApplyDefaults()
	c.Whisper.Model = "small"
	c.Whisper.Python = "python"
	c.Sidecar.URL = "http://127.0.0.1:8001"
	c.Sidecar.TimeoutSeconds = 600
	c.Sidecar.Retries = 3
	c.Transcriber = TranscriberSidecar
	c.FFmpeg.Binary = "ffmpeg"
	c.Workers.Count = 2
	c.Workers.QueueSize = 100
	c.Storage.TempDir = "temp"
	c.Storage.OutputDir = "outputs"
	c.Storage.Database = "data/metadata.db"
	c.Storage.Voiceprints = "data/voiceprints.json"
	c.Cleanup.IntervalMinutes = 60
	c.Cleanup.MaxAgeHours = 24
	c.GoogleDrive.CredentialsFile = "credentials.json"
	c.GoogleDrive.TokenFile = "token.json"
	c.GoogleDrive.FolderName = "Meeting Transcripts"
	c.Limits.MaxFileSizeMB = 500

	p := pipeline.DefaultConfig()
	c.Pipeline.Normalize = p.Normalize
	c.Pipeline.TurnMaxGap = p.TurnPolicy.MaxGap
	c.Pipeline.TurnMinDuration = p.TurnPolicy.MinDuration
	c.Pipeline.SegmentMaxGap = p.SegmentPolicy.MaxGap
	c.Pipeline.SegmentMinDuration = p.SegmentPolicy.MinDuration
	c.Pipeline.GapThreshold = p.GapThreshold
	c.Identification = p.Identify
	c.Clustering = speakers.DefaultClusterConfig()
	return &c
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected fields from MT_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MT_SERVER_HOST":   &c.Server.Host,
		"MT_LOG_LEVEL":     &c.Logging.Level,
		"MT_LOG_FORMAT":    &c.Logging.Format,
		"MT_SIDECAR_URL":   &c.Sidecar.URL,
		"MT_TRANSCRIBER":   &c.Transcriber,
		"MT_WHISPER_MODEL": &c.Whisper.Model,
		"MT_VOICEPRINTS":   &c.Storage.Voiceprints,
		"MT_DATABASE":      &c.Storage.Database,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MT_SERVER_PORT":   &c.Server.Port,
		"MT_WORKERS_COUNT": &c.Workers.Count,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks struct tags and then the pipeline thresholds.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PipelineConfig builds the pipeline thresholds from the pipeline and
// identification sections.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Normalize:     c.Pipeline.Normalize,
		TurnPolicy:    segments.TurnPolicy(c.Pipeline.TurnMaxGap, c.Pipeline.TurnMinDuration),
		SegmentPolicy: segments.ShortSegmentPolicy(c.Pipeline.SegmentMaxGap, c.Pipeline.SegmentMinDuration),
		Identify:      c.Identification,
		GapThreshold:  c.Pipeline.GapThreshold,
	}
}

// Address is the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
