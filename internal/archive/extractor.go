// Package archive unpacks downloaded asset packages and classifies their
// contents into the one model file and its loose textures.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// modelExt is the model file extension the extractor requires exactly one of.
const modelExt = ".fbx"

// archiveImageExts are the image extensions collected from archives as
// texture candidates. The matcher later considers a wider set, since it
// scans the whole model directory.
var archiveImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ArchiveError reports a corrupt archive or a violated content invariant:
// an asset package must contain exactly one model file.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Extract unpacks the zip archive at archivePath into destDir, preserving
// relative paths, and returns the model path plus the texture paths in
// archive entry order. All contents are fully on disk before Extract
// returns. Zero or multiple model files fail with *ArchiveError.
func Extract(archivePath, destDir string) (string, []string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", nil, &ArchiveError{Path: archivePath, Err: fmt.Errorf("failed to open: %w", err)}
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	var modelPath string
	var texturePaths []string

	for _, entry := range reader.File {
		outPath, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return "", nil, &ArchiveError{Path: archivePath, Err: err}
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0755); err != nil {
				return "", nil, fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := extractFile(entry, outPath); err != nil {
			return "", nil, &ArchiveError{Path: archivePath, Err: err}
		}

		switch ext := strings.ToLower(filepath.Ext(entry.Name)); {
		case ext == modelExt:
			if modelPath != "" {
				return "", nil, &ArchiveError{Path: archivePath, Err: fmt.Errorf("multiple model files found")}
			}
			modelPath = outPath
		case archiveImageExts[ext]:
			texturePaths = append(texturePaths, outPath)
		}
	}

	if modelPath == "" {
		return "", nil, &ArchiveError{Path: archivePath, Err: fmt.Errorf("no model file found")}
	}

	return modelPath, texturePaths, nil
}

// safeJoin joins an archive entry name under root, rejecting entries that
// would escape it.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Join(root, filepath.FromSlash(name))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes extraction directory", name)
	}
	return cleaned, nil
}

func extractFile(entry *zip.File, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to read entry %q: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", outPath, err)
	}

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", outPath, err)
	}
	return nil
}
