package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	data := "https://example.com/a.zip\n\n# staging assets\n  https://example.com/b.zip  \n\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write input file: %v", err)
	}

	urls, err := readURLs(path)
	if err != nil {
		t.Fatalf("readURLs failed: %v", err)
	}

	want := []string{"https://example.com/a.zip", "https://example.com/b.zip"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("Expected %v, got %v", want, urls)
	}
}

func TestReadURLsMissingFile(t *testing.T) {
	_, err := readURLs(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("Expected an error for a missing input file")
	}
}
