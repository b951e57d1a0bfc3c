// Package models fetches model asset files needed by the inference engine.
//
// Engine deployments reference a tokenizer config and a checkpoint by local
// path; when the files are missing and download URLs are configured, the
// fetcher retrieves them once at startup. Present files are never
// re-downloaded.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/naijavoice/tts-api/internal/config"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrUnexpectedStatus indicates a non-OK response while downloading an asset.
var ErrUnexpectedStatus = errors.New("unexpected download status")

// Asset pairs a download URL with its local target path.
type Asset struct {
	URL  string
	Path string
}

// Fetcher downloads missing model assets over HTTP.
type Fetcher struct {
	httpClient *http.Client
	log        *logger.Logger
}

// NewFetcher creates a Fetcher. Downloads have no client-side timeout:
// checkpoints are large and progress at network speed; cancellation is
// handled through the context.
func NewFetcher(log *logger.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{},
		log:        log,
	}
}

// AssetsFromConfig returns the assets that have both a URL and a target
// path configured. Incomplete pairs are skipped: a deployment that mounts
// its model files needs no download section at all.
func AssetsFromConfig(cfg config.ModelsConfig) []Asset {
	var assets []Asset

	if cfg.ConfigURL != "" && cfg.ConfigPath != "" {
		assets = append(assets, Asset{URL: cfg.ConfigURL, Path: cfg.ConfigPath})
	}

	if cfg.CheckpointURL != "" && cfg.CheckpointPath != "" {
		assets = append(assets, Asset{URL: cfg.CheckpointURL, Path: cfg.CheckpointPath})
	}

	return assets
}

// EnsureAll downloads every missing asset. The first failure aborts the
// pass: the engine cannot start with a partial model set, so there is no
// value in continuing.
func (f *Fetcher) EnsureAll(ctx context.Context, assets []Asset) error {
	for _, asset := range assets {
		err := f.ensureOne(ctx, asset)
		if err != nil {
			return err
		}
	}

	return nil
}

// ensureOne downloads a single asset unless its target already exists. The
// download lands in a temporary file that is renamed into place only after
// a complete read, so an interrupted fetch never leaves a truncated model
// file behind.
func (f *Fetcher) ensureOne(ctx context.Context, asset Asset) error {
	_, statErr := os.Stat(asset.Path)
	if statErr == nil {
		return nil
	}

	if !os.IsNotExist(statErr) {
		return fmt.Errorf("failed to check model path %q: %w", asset.Path, statErr)
	}

	f.log.Info("Downloading model asset %s", asset.URL)

	mkdirErr := os.MkdirAll(filepath.Dir(asset.Path), dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(
			"failed to create model directory for %q: %w",
			asset.Path,
			mkdirErr,
		)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf("failed to create download request: %w", reqErr)
	}

	resp, doErr := f.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("failed to download %s: %w", asset.URL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s for %s", ErrUnexpectedStatus, resp.Status, asset.URL)
	}

	return f.writeAsset(asset.Path, resp.Body)
}

func (f *Fetcher) writeAsset(path string, body io.Reader) error {
	tempFile, createErr := os.CreateTemp(filepath.Dir(path), ".download-*")
	if createErr != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", path, createErr)
	}

	_, copyErr := io.Copy(tempFile, body)
	closeErr := tempFile.Close()

	if copyErr != nil {
		_ = os.Remove(tempFile.Name())

		return fmt.Errorf("failed to write model asset %q: %w", path, copyErr)
	}

	if closeErr != nil {
		_ = os.Remove(tempFile.Name())

		return fmt.Errorf("failed to close model asset %q: %w", path, closeErr)
	}

	chmodErr := os.Chmod(tempFile.Name(), filePermissions)
	if chmodErr != nil {
		_ = os.Remove(tempFile.Name())

		return fmt.Errorf("failed to set permissions on %q: %w", path, chmodErr)
	}

	renameErr := os.Rename(tempFile.Name(), path)
	if renameErr != nil {
		_ = os.Remove(tempFile.Name())

		return fmt.Errorf("failed to move model asset into place at %q: %w", path, renameErr)
	}

	f.log.Info("Model asset saved to %s", path)

	return nil
}
