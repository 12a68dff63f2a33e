// Package config loads processor configuration: texture filename patterns
// and export settings. Config is loaded once per processor instance and is
// never a fatal dependency — a missing or malformed file falls back to the
// built-in defaults with a logged warning.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelforge/fbxbatch/internal/host"
	"gopkg.in/yaml.v3"
)

// Config holds the processor settings. Immutable after Load.
type Config struct {
	// TexturePatterns maps a texture role name to its filename suffix token,
	// e.g. "diffuse" -> "_BC". Roles without a suffix are never matched.
	TexturePatterns map[string]string

	// ExportSettings are passed verbatim to the host's export call.
	ExportSettings host.ExportSettings
}

// Default returns the built-in configuration: suffix tokens for the
// diffuse, normal and opacity roles, and the stock export settings.
func Default() Config {
	return Config{
		TexturePatterns: map[string]string{
			"diffuse": "_BC",
			"normal":  "_N",
			"opacity": "_O",
		},
		ExportSettings: host.DefaultExportSettings(),
	}
}

// filePatch mirrors the config file shape. Pointer fields distinguish
// "absent" from "explicitly set" so file values override defaults
// key-by-key. Unknown top-level keys are ignored by both decoders.
type filePatch struct {
	TexturePatterns map[string]string `json:"texture_patterns" yaml:"texture_patterns"`
	ExportSettings  *exportPatch      `json:"export_settings" yaml:"export_settings"`
}

type exportPatch struct {
	EmbedTextures      *bool   `json:"embed_textures" yaml:"embed_textures"`
	BakeSpaceTransform *bool   `json:"bake_space_transform" yaml:"bake_space_transform"`
	UseSelection       *bool   `json:"use_selection" yaml:"use_selection"`
	ApplyScaleOptions  *string `json:"apply_scale_options" yaml:"apply_scale_options"`
}

// Load reads the config file at path and merges it over the defaults.
// An empty path returns the defaults. Any read or parse failure logs a
// warning and returns the defaults.
func Load(path string) Config {
	cfg := Default()
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read config, using defaults", "path", path, "error", err)
		return cfg
	}

	var patch filePatch
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &patch)
	default:
		err = json.Unmarshal(data, &patch)
	}
	if err != nil {
		slog.Warn("Failed to parse config, using defaults", "path", path, "error", err)
		return cfg
	}

	for role, suffix := range patch.TexturePatterns {
		cfg.TexturePatterns[role] = suffix
	}
	if p := patch.ExportSettings; p != nil {
		if p.EmbedTextures != nil {
			cfg.ExportSettings.EmbedTextures = *p.EmbedTextures
		}
		if p.BakeSpaceTransform != nil {
			cfg.ExportSettings.BakeSpaceTransform = *p.BakeSpaceTransform
		}
		if p.UseSelection != nil {
			cfg.ExportSettings.UseSelection = *p.UseSelection
		}
		if p.ApplyScaleOptions != nil {
			cfg.ExportSettings.ApplyScaleOptions = *p.ApplyScaleOptions
		}
	}

	slog.Debug("Loaded config", "path", path, "patterns", len(cfg.TexturePatterns))
	return cfg
}

// Roles returns the configured role names in sorted order so pattern
// iteration is deterministic run to run.
func (c Config) Roles() []string {
	roles := make([]string, 0, len(c.TexturePatterns))
	for role := range c.TexturePatterns {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
