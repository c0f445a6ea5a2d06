// Package app wires the configured collaborators into a pipeline and a
// speaker service. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/config"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/pipeline"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/speakers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

// App holds the long-lived components.
type App struct {
	Config   *config.Config
	FFmpeg   *transcription.FFmpeg
	Sidecar  *transcription.SidecarClient
	Store    *voiceprint.Store
	DB       *storage.MetadataDB
	Local    *storage.LocalStorage
	Pipeline *pipeline.Pipeline
	Speakers *speakers.Service
}

// New creates directories, opens the stores and builds the pipeline.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	err := cleanup.EnsureDirs(
		cfg.Storage.TempDir,
		cfg.Storage.OutputDir,
		filepath.Dir(cfg.Storage.Database),
		filepath.Dir(cfg.Storage.Voiceprints),
	)
	if err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	a := &App{
		Config: cfg,
		FFmpeg: transcription.NewFFmpeg(cfg.FFmpeg.Binary, cfg.Storage.TempDir),
		Local:  storage.NewLocalStorage(cfg.Storage.OutputDir),
	}
	a.Sidecar = transcription.NewSidecarClient(cfg.Sidecar.URL, a.FFmpeg, log,
		transcription.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Sidecar.TimeoutSeconds) * time.Second}),
		transcription.WithRetry(cfg.Sidecar.Retries, time.Second),
	)

	a.Store, err = voiceprint.Open(cfg.Storage.Voiceprints, log)
	if err != nil {
		return nil, fmt.Errorf("open voiceprint store: %w", err)
	}

	a.DB, err = storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	var transcriber transcription.Transcriber = a.Sidecar
	if cfg.Transcriber == config.TranscriberWhisper {
		model := cfg.Whisper.Model
		if cfg.Whisper.ModelPath != "" {
			model = cfg.Whisper.ModelPath
		}
		transcriber = transcription.NewWhisperTranscriber(a.FFmpeg, cfg.Whisper.Python, model, cfg.Whisper.Language, log)
	}

	a.Pipeline, err = pipeline.New(cfg.PipelineConfig(), pipeline.Deps{
		Diarizer:    a.Sidecar,
		Embedder:    a.Sidecar,
		Transcriber: transcriber,
		Profiles:    a.Store,
		Unknowns:    a.DB,
		Preparer:    a.FFmpeg,
		Logger:      log,
	})
	if err != nil {
		a.DB.Close()
		return nil, err
	}

	a.Speakers = speakers.NewService(a.Store, a.Sidecar, a.DB, cfg.Clustering, log)
	return a, nil
}

// Drive connects the optional Google Drive exporter. It returns nil when no
// credentials file is present.
func (a *App) Drive(ctx context.Context, log zerolog.Logger) (*storage.DriveClient, error) {
	gd := a.Config.GoogleDrive
	if _, err := os.Stat(gd.CredentialsFile); err != nil {
		log.Info().Msg("Google Drive credentials not found, saving locally only")
		return nil, nil
	}
	dc, err := storage.NewDriveClient(ctx, gd.CredentialsFile, gd.TokenFile, gd.FolderName, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("folder", gd.FolderName).Msg("Google Drive integration enabled")
	return dc, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
