package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelforge/fbxbatch/internal/archive"
	"github.com/modelforge/fbxbatch/internal/config"
	"github.com/modelforge/fbxbatch/internal/fetch"
	"github.com/modelforge/fbxbatch/internal/host"
	"github.com/modelforge/fbxbatch/internal/models"
)

// fakeEngine is an in-memory host runtime good enough to drive the
// pipeline: it records every call and can be told to fail a stage.
type fakeEngine struct {
	resets     int
	imported   []string
	pairs      []host.MeshMaterial
	assigned   []assignedTexture
	transforms []host.MeshID
	exports    []exportCall
	blendModes map[host.MaterialID]host.BlendMode

	failImport error
	failExport error

	nextNode int
}

type assignedTexture struct {
	Material host.MaterialID
	Path     string
	CS       host.ColorSpace
}

type exportCall struct {
	Path     string
	Settings host.ExportSettings
}

func newFakeEngine(pairs ...host.MeshMaterial) *fakeEngine {
	return &fakeEngine{pairs: pairs, blendModes: make(map[host.MaterialID]host.BlendMode)}
}

func (f *fakeEngine) ResetScene(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeEngine) ImportModel(ctx context.Context, path string) error {
	if f.failImport != nil {
		return f.failImport
	}
	f.imported = append(f.imported, path)
	return nil
}

func (f *fakeEngine) MeshMaterials(ctx context.Context) ([]host.MeshMaterial, error) {
	return f.pairs, nil
}

func (f *fakeEngine) ApplyWorldTransform(ctx context.Context, mesh host.MeshID) error {
	f.transforms = append(f.transforms, mesh)
	return nil
}

func (f *fakeEngine) ExportModel(ctx context.Context, path string, settings host.ExportSettings) error {
	if f.failExport != nil {
		return f.failExport
	}
	f.exports = append(f.exports, exportCall{Path: path, Settings: settings})
	return nil
}

func (f *fakeEngine) AddTextureNode(ctx context.Context, mat host.MaterialID, path string, cs host.ColorSpace) (host.NodeID, error) {
	f.assigned = append(f.assigned, assignedTexture{Material: mat, Path: path, CS: cs})
	f.nextNode++
	return host.NodeID(fmt.Sprintf("node-%d", f.nextNode)), nil
}

func (f *fakeEngine) AddNormalDecodeNode(ctx context.Context, mat host.MaterialID) (host.NodeID, error) {
	f.nextNode++
	return host.NodeID(fmt.Sprintf("node-%d", f.nextNode)), nil
}

func (f *fakeEngine) LinkNodes(ctx context.Context, mat host.MaterialID, from, to host.NodeID) error {
	return nil
}

func (f *fakeEngine) ConnectToSurface(ctx context.Context, mat host.MaterialID, node host.NodeID, input host.SurfaceInput) error {
	return nil
}

func (f *fakeEngine) RemoveNode(ctx context.Context, mat host.MaterialID, node host.NodeID) error {
	return nil
}

func (f *fakeEngine) HasSurfaceInput(ctx context.Context, mat host.MaterialID, input host.SurfaceInput) (bool, error) {
	return false, nil
}

func (f *fakeEngine) SetBlendMode(ctx context.Context, mat host.MaterialID, mode host.BlendMode) error {
	f.blendModes[mat] = mode
	return nil
}

func (f *fakeEngine) SetShowTransparentBack(ctx context.Context, mat host.MaterialID, show bool) error {
	return nil
}

// zipBytes builds an in-memory zip whose entries are name -> content.
func zipBytes(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte("data")); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// packageServer serves prebuilt zip archives by URL path.
func packageServer(t *testing.T, archives map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if _, err := w.Write(data); err != nil {
			t.Errorf("Failed to serve archive: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestOrchestrator(t *testing.T, eng host.Engine) (*Orchestrator, string, string) {
	t.Helper()
	tempRoot := filepath.Join(t.TempDir(), "work")
	outputRoot := filepath.Join(t.TempDir(), "out")
	fetcher := fetch.New()
	fetcher.SetPerHostInterval(0)
	orch := New(fetcher, eng, config.Default(), tempRoot, outputRoot)
	return orch, tempRoot, outputRoot
}

func TestRunContinuesPastFailedItem(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip":    zipBytes(t, "Robot.fbx", "T_Robot_BC.png"),
		"/no-model.zip": zipBytes(t, "T_Lonely_BC.png"),
		"/crate.zip":    zipBytes(t, "Crate.fbx"),
	})

	eng := newFakeEngine(host.MeshMaterial{Mesh: "mesh-1", Material: "mat-1", MaterialName: "Body"})
	orch, tempRoot, _ := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{
		server.URL + "/robot.zip",
		server.URL + "/no-model.zip",
		server.URL + "/crate.zip",
	})

	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("Expected 2 successes and 1 failure, got %d/%d", summary.Succeeded, summary.Failed)
	}

	states := []models.State{summary.Items[0].State, summary.Items[1].State, summary.Items[2].State}
	want := []models.State{models.StateExported, models.StateFailed, models.StateExported}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Item %d: expected state %s, got %s", i, want[i], states[i])
		}
	}

	var archiveErr *archive.ArchiveError
	if !errors.As(summary.Items[1].Err, &archiveErr) {
		t.Errorf("Expected *ArchiveError on item 2, got %v", summary.Items[1].Err)
	}

	// The failed item's working directory is reclaimed.
	if _, err := os.Stat(summary.Items[1].WorkDir); !os.IsNotExist(err) {
		t.Error("Expected failed item's working directory removed")
	}

	// Both surviving items went through the whole machine.
	if eng.resets != 2 || len(eng.imported) != 2 || len(eng.exports) != 2 {
		t.Errorf("Expected 2 resets/imports/exports, got %d/%d/%d", eng.resets, len(eng.imported), len(eng.exports))
	}

	// Nothing lingers under the temp root after a clean batch...
	// except failure diagnostics, of which there are none here.
	dirents, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatalf("Failed to list temp root: %v", err)
	}
	if len(dirents) != 0 {
		t.Errorf("Expected empty temp root, found %d entries", len(dirents))
	}
}

func TestRunFetchFailure(t *testing.T) {
	server := packageServer(t, nil) // everything 404s

	eng := newFakeEngine()
	orch, _, _ := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{server.URL + "/gone.zip"})

	if summary.Failed != 1 {
		t.Fatalf("Expected 1 failure, got %d", summary.Failed)
	}
	var netErr *fetch.NetworkError
	if !errors.As(summary.Items[0].Err, &netErr) {
		t.Errorf("Expected *NetworkError, got %v", summary.Items[0].Err)
	}
	if _, err := os.Stat(summary.Items[0].WorkDir); !os.IsNotExist(err) {
		t.Error("Expected working directory removed after fetch failure")
	}
	if eng.resets != 0 {
		t.Error("Expected the scene untouched for a failed fetch")
	}
}

func TestProcessAssignsMatchedTextures(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip": zipBytes(t, "Robot.fbx", "T_Robot_Arm_BC.png", "T_Robot_O.png", "unrelated.png"),
	})

	eng := newFakeEngine(host.MeshMaterial{Mesh: "mesh-1", Material: "mat-1", MaterialName: "Arm"})
	orch, _, _ := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{server.URL + "/robot.zip"})
	if summary.Failed != 0 {
		t.Fatalf("Expected success, got %v", summary.Items[0].Err)
	}

	if len(eng.assigned) != 2 {
		t.Fatalf("Expected diffuse and opacity assigned, got %+v", eng.assigned)
	}
	if filepath.Base(eng.assigned[0].Path) != "T_Robot_Arm_BC.png" || eng.assigned[0].CS != host.ColorSpaceSRGB {
		t.Errorf("Unexpected diffuse assignment: %+v", eng.assigned[0])
	}
	if filepath.Base(eng.assigned[1].Path) != "T_Robot_O.png" {
		t.Errorf("Unexpected opacity assignment: %+v", eng.assigned[1])
	}
	if eng.blendModes["mat-1"] != host.BlendAlpha {
		t.Error("Expected opacity wiring to switch the material to alpha blend")
	}
	if len(eng.transforms) != 1 || eng.transforms[0] != "mesh-1" {
		t.Errorf("Expected one transform bake on mesh-1, got %v", eng.transforms)
	}
}

func TestProcessFailureKeepsWorkDir(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip": zipBytes(t, "Robot.fbx"),
	})

	eng := newFakeEngine()
	eng.failImport = errors.New("bad fbx header")
	orch, _, _ := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{server.URL + "/robot.zip"})

	item := summary.Items[0]
	if item.State != models.StateFailed {
		t.Fatalf("Expected failed item, got %s", item.State)
	}
	// Partial output stays on disk for diagnosis.
	if _, err := os.Stat(item.WorkDir); err != nil {
		t.Errorf("Expected working directory kept after process failure: %v", err)
	}
}

func TestExportFailure(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip": zipBytes(t, "Robot.fbx"),
	})

	eng := newFakeEngine()
	eng.failExport = errors.New("disk full")
	orch, _, _ := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{server.URL + "/robot.zip"})

	var exportErr *ExportError
	if !errors.As(summary.Items[0].Err, &exportErr) {
		t.Fatalf("Expected *ExportError, got %v", summary.Items[0].Err)
	}
}

func TestExportLayout(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip": zipBytes(t, "Robot.fbx"),
	})

	eng := newFakeEngine()
	orch, _, outputRoot := newTestOrchestrator(t, eng)

	summary := orch.Run(context.Background(), []string{server.URL + "/robot.zip"})
	if summary.Failed != 0 {
		t.Fatalf("Expected success, got %v", summary.Items[0].Err)
	}

	wantDir := filepath.Join(outputRoot, "Robot")
	if summary.Items[0].OutputDir != wantDir {
		t.Errorf("Expected output dir %s, got %s", wantDir, summary.Items[0].OutputDir)
	}
	if len(eng.exports) != 1 || eng.exports[0].Path != filepath.Join(wantDir, "Robot.fbx") {
		t.Errorf("Unexpected export call: %+v", eng.exports)
	}
	if eng.exports[0].Settings != config.Default().ExportSettings {
		t.Errorf("Expected default export settings, got %+v", eng.exports[0].Settings)
	}
}

func TestSummaryErr(t *testing.T) {
	server := packageServer(t, map[string][]byte{
		"/robot.zip": zipBytes(t, "Robot.fbx"),
	})

	eng := newFakeEngine()
	orch, _, _ := newTestOrchestrator(t, eng)

	good := orch.Run(context.Background(), []string{server.URL + "/robot.zip"})
	if err := good.Err(); err != nil {
		t.Errorf("Expected nil combined error for a clean batch, got %v", err)
	}

	mixed := orch.Run(context.Background(), []string{
		server.URL + "/robot.zip",
		server.URL + "/missing.zip",
	})
	if err := mixed.Err(); err == nil {
		t.Error("Expected combined error for a batch with failures")
	}
}
