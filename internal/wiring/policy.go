// Package wiring connects resolved textures into material shading graphs.
// The policy is a fixed lookup table from texture role to graph action;
// adding a role is a table entry, not new control flow.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/modelforge/fbxbatch/internal/host"
	"github.com/modelforge/fbxbatch/internal/texmatch"
)

// Failure reports an image load or graph mutation failure during wiring.
// It is recoverable: the attempt's nodes are rolled back and the remaining
// roles for the material still get wired.
type Failure struct {
	Role    texmatch.Role
	Texture string
	Err     error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("wiring %s texture %s: %v", e.Role, filepath.Base(e.Texture), e.Err)
}

func (e *Failure) Unwrap() error { return e.Err }

// Status classifies a wiring attempt.
type Status int

const (
	StatusApplied Status = iota
	StatusSkipped
	StatusFailed
)

// Outcome is the result of wiring one (material, role, texture) triple.
type Outcome struct {
	Status Status
	Reason string // set for StatusSkipped
	Err    error  // set for StatusFailed, always a *Failure
}

// rule describes the graph action for one role: which surface input the
// texture feeds, how its pixels are interpreted, and any required material
// side effects.
type rule struct {
	input        host.SurfaceInput
	colorSpace   host.ColorSpace
	normalDecode bool // route through a normal-decoding node
	alphaBlend   bool // switch material to alpha blend, hide back faces
	optionalIn   bool // skip silently when the shader lacks the input
}

var rules = map[texmatch.Role]rule{
	texmatch.RoleDiffuse:          {input: host.InputBaseColor, colorSpace: host.ColorSpaceSRGB},
	texmatch.RoleNormal:           {input: host.InputNormal, colorSpace: host.ColorSpaceNonColor, normalDecode: true},
	texmatch.RoleOpacity:          {input: host.InputAlpha, colorSpace: host.ColorSpaceNonColor, alphaBlend: true},
	texmatch.RoleRoughness:        {input: host.InputRoughness, colorSpace: host.ColorSpaceNonColor},
	texmatch.RoleMetallic:         {input: host.InputMetallic, colorSpace: host.ColorSpaceNonColor},
	texmatch.RoleAmbientOcclusion: {input: host.InputAmbientOcclusion, colorSpace: host.ColorSpaceNonColor, optionalIn: true},
}

// Wire connects texturePath into mat's shading graph according to the
// role's rule. On failure every node created during this attempt is removed
// so no dangling nodes are left behind.
func Wire(ctx context.Context, eng host.Engine, mat host.MaterialID, role texmatch.Role, texturePath string) Outcome {
	r, ok := rules[role]
	if !ok {
		return Outcome{Status: StatusSkipped, Reason: fmt.Sprintf("no wiring rule for role %q", role)}
	}

	if r.optionalIn {
		has, err := eng.HasSurfaceInput(ctx, mat, r.input)
		if err != nil {
			return failed(role, texturePath, err)
		}
		if !has {
			// The shading model has no such socket. Treating this as a
			// no-op keeps the material's other roles wirable.
			return Outcome{Status: StatusSkipped, Reason: fmt.Sprintf("shading model exposes no %s input", r.input)}
		}
	}

	var created []host.NodeID
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			if err := eng.RemoveNode(ctx, mat, created[i]); err != nil {
				slog.Warn("Failed to remove node during rollback", "material", mat, "node", created[i], "error", err)
			}
		}
	}

	texNode, err := eng.AddTextureNode(ctx, mat, texturePath, r.colorSpace)
	if err != nil {
		return failed(role, texturePath, err)
	}
	created = append(created, texNode)

	out := texNode
	if r.normalDecode {
		decode, err := eng.AddNormalDecodeNode(ctx, mat)
		if err != nil {
			rollback()
			return failed(role, texturePath, err)
		}
		created = append(created, decode)
		if err := eng.LinkNodes(ctx, mat, texNode, decode); err != nil {
			rollback()
			return failed(role, texturePath, err)
		}
		out = decode
	}

	if err := eng.ConnectToSurface(ctx, mat, out, r.input); err != nil {
		rollback()
		return failed(role, texturePath, err)
	}

	if r.alphaBlend {
		if err := eng.SetBlendMode(ctx, mat, host.BlendAlpha); err != nil {
			rollback()
			return failed(role, texturePath, err)
		}
		if err := eng.SetShowTransparentBack(ctx, mat, false); err != nil {
			rollback()
			return failed(role, texturePath, err)
		}
	}

	slog.Info("Assigned texture", "role", role, "texture", filepath.Base(texturePath))
	return Outcome{Status: StatusApplied}
}

func failed(role texmatch.Role, texturePath string, err error) Outcome {
	return Outcome{Status: StatusFailed, Err: &Failure{Role: role, Texture: texturePath, Err: err}}
}
