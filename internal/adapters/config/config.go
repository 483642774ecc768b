package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/arumata/kodiback/assets"
	"github.com/arumata/kodiback/internal/usecase"
)

// Adapter implements ConfigPort using TOML files on disk.
type Adapter struct {
	logger *slog.Logger
	tmpl   *template.Template
}

// New creates a new config adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("config adapter requires logger")
	}
	tmpl := template.Must(template.New("config.toml.tmpl").
		Funcs(template.FuncMap{"quote": strconv.Quote}).
		ParseFS(assets.ConfigFS, assets.ConfigTemplatePath))
	return &Adapter{logger: logger, tmpl: tmpl}
}

// Load reads config from path or returns defaults when file is missing.
func (a *Adapter) Load(ctx context.Context, path string) (usecase.ConfigFile, error) {
	if strings.TrimSpace(path) == "" {
		return usecase.ConfigFile{}, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is controlled by usecase
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return usecase.DefaultConfigFile(), nil
		}
		return usecase.ConfigFile{}, err
	}

	cfg := usecase.DefaultConfigFile()
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return usecase.ConfigFile{}, fmt.Errorf("parse config toml: %w", err)
	}
	for _, key := range meta.Undecoded() {
		a.logger.WarnContext(ctx, "Unknown config key ignored", "key", key.String(), "path", path)
	}

	return cfg, nil
}

// Save writes config to path in TOML format with inline documentation.
func (a *Adapter) Save(ctx context.Context, path string, cfg usecase.ConfigFile) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}

	content, err := a.render(cfg)
	if err != nil {
		return err
	}

	// #nosec G306 G304 - config is not secret, path is controlled by usecase.
	return os.WriteFile(path, content, 0o644)
}

type cleanupRow struct {
	Key         string
	Description string
	Enabled     bool
}

type templateData struct {
	usecase.ConfigFile
	Cleanup []cleanupRow
}

// render fills the embedded template. Only default cleanup targets are
// written; optional ones are opt-in per run.
func (a *Adapter) render(cfg usecase.ConfigFile) ([]byte, error) {
	data := templateData{ConfigFile: cfg}
	for _, t := range usecase.CleanupCatalog() {
		if !t.Default {
			continue
		}
		enabled, ok := cfg.Cleanup[string(t.Key)]
		if !ok {
			enabled = true
		}
		data.Cleanup = append(data.Cleanup, cleanupRow{
			Key:         string(t.Key),
			Description: t.Description,
			Enabled:     enabled,
		})
	}
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return buf.Bytes(), nil
}
