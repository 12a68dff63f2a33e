// Package bridge implements host.Engine over a child process speaking
// newline-delimited JSON on stdin/stdout. The child is a thin shim inside
// the 3D runtime (for example a script run under the runtime's background
// mode) that executes one request per line and replies with one line.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/modelforge/fbxbatch/internal/host"
)

// request is one operation sent to the host shim.
type request struct {
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
}

// response is the shim's reply. Result is op-specific.
type response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Engine talks to the host runtime shim. Calls are serialized: the protocol
// is strictly one request, one reply.
type Engine struct {
	mu  sync.Mutex
	enc *json.Encoder
	sc  *bufio.Scanner
	cmd *exec.Cmd
}

var _ host.Engine = (*Engine)(nil)

// NewConn builds an Engine over an existing reader/writer pair. Used
// directly in tests; production code goes through Start.
func NewConn(r io.Reader, w io.Writer) *Engine {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Engine{enc: json.NewEncoder(w), sc: sc}
}

// Start launches the shim command and connects to its stdio.
func Start(ctx context.Context, name string, args ...string) (*Engine, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open shim stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open shim stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start host shim %q: %w", name, err)
	}

	eng := NewConn(stdout, stdin)
	eng.cmd = cmd
	return eng, nil
}

// Close tells the shim to exit and waits for it.
func (e *Engine) Close() error {
	e.mu.Lock()
	_ = e.enc.Encode(request{Op: "quit"})
	e.mu.Unlock()
	if e.cmd != nil {
		return e.cmd.Wait()
	}
	return nil
}

// call performs one round trip. The out parameter, when non-nil, receives
// the decoded result payload.
func (e *Engine) call(ctx context.Context, op string, params map[string]any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(request{Op: op, Params: params}); err != nil {
		return fmt.Errorf("host %s: write: %w", op, err)
	}
	if !e.sc.Scan() {
		if err := e.sc.Err(); err != nil {
			return fmt.Errorf("host %s: read: %w", op, err)
		}
		return fmt.Errorf("host %s: shim closed the connection", op)
	}

	var resp response
	if err := json.Unmarshal(e.sc.Bytes(), &resp); err != nil {
		return fmt.Errorf("host %s: bad reply: %w", op, err)
	}
	if !resp.OK {
		return fmt.Errorf("host %s: %s", op, resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("host %s: bad result: %w", op, err)
		}
	}
	return nil
}

func (e *Engine) ResetScene(ctx context.Context) error {
	return e.call(ctx, "reset_scene", nil, nil)
}

func (e *Engine) ImportModel(ctx context.Context, path string) error {
	return e.call(ctx, "import_model", map[string]any{"path": path}, nil)
}

func (e *Engine) MeshMaterials(ctx context.Context) ([]host.MeshMaterial, error) {
	var out struct {
		Pairs []struct {
			Mesh     string `json:"mesh"`
			Material string `json:"material"`
			Name     string `json:"name"`
		} `json:"mesh_materials"`
	}
	if err := e.call(ctx, "mesh_materials", nil, &out); err != nil {
		return nil, err
	}
	pairs := make([]host.MeshMaterial, 0, len(out.Pairs))
	for _, p := range out.Pairs {
		pairs = append(pairs, host.MeshMaterial{
			Mesh:         host.MeshID(p.Mesh),
			Material:     host.MaterialID(p.Material),
			MaterialName: p.Name,
		})
	}
	return pairs, nil
}

func (e *Engine) ApplyWorldTransform(ctx context.Context, mesh host.MeshID) error {
	return e.call(ctx, "apply_world_transform", map[string]any{"mesh": string(mesh)}, nil)
}

func (e *Engine) ExportModel(ctx context.Context, path string, settings host.ExportSettings) error {
	return e.call(ctx, "export_model", map[string]any{
		"path":     path,
		"settings": settings,
	}, nil)
}

func (e *Engine) AddTextureNode(ctx context.Context, mat host.MaterialID, path string, cs host.ColorSpace) (host.NodeID, error) {
	var out struct {
		Node string `json:"node"`
	}
	err := e.call(ctx, "add_texture_node", map[string]any{
		"material":    string(mat),
		"path":        path,
		"color_space": string(cs),
	}, &out)
	if err != nil {
		return "", err
	}
	return host.NodeID(out.Node), nil
}

func (e *Engine) AddNormalDecodeNode(ctx context.Context, mat host.MaterialID) (host.NodeID, error) {
	var out struct {
		Node string `json:"node"`
	}
	err := e.call(ctx, "add_normal_decode_node", map[string]any{"material": string(mat)}, &out)
	if err != nil {
		return "", err
	}
	return host.NodeID(out.Node), nil
}

func (e *Engine) LinkNodes(ctx context.Context, mat host.MaterialID, from, to host.NodeID) error {
	return e.call(ctx, "link_nodes", map[string]any{
		"material": string(mat),
		"from":     string(from),
		"to":       string(to),
	}, nil)
}

func (e *Engine) ConnectToSurface(ctx context.Context, mat host.MaterialID, node host.NodeID, input host.SurfaceInput) error {
	return e.call(ctx, "connect_to_surface", map[string]any{
		"material": string(mat),
		"node":     string(node),
		"input":    string(input),
	}, nil)
}

func (e *Engine) RemoveNode(ctx context.Context, mat host.MaterialID, node host.NodeID) error {
	return e.call(ctx, "remove_node", map[string]any{
		"material": string(mat),
		"node":     string(node),
	}, nil)
}

func (e *Engine) HasSurfaceInput(ctx context.Context, mat host.MaterialID, input host.SurfaceInput) (bool, error) {
	var out struct {
		Has bool `json:"has"`
	}
	err := e.call(ctx, "has_surface_input", map[string]any{
		"material": string(mat),
		"input":    string(input),
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Has, nil
}

func (e *Engine) SetBlendMode(ctx context.Context, mat host.MaterialID, mode host.BlendMode) error {
	return e.call(ctx, "set_blend_mode", map[string]any{
		"material": string(mat),
		"mode":     string(mode),
	}, nil)
}

func (e *Engine) SetShowTransparentBack(ctx context.Context, mat host.MaterialID, show bool) error {
	return e.call(ctx, "set_show_transparent_back", map[string]any{
		"material": string(mat),
		"show":     show,
	}, nil)
}
