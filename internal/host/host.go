// Package host defines the capability surface of the external 3D content
// runtime. The rest of the program treats the runtime as opaque: it imports
// models, mutates material shading graphs, bakes transforms and exports
// scenes, but how it does any of that is not this program's concern.
package host

import "context"

// MeshID identifies a mesh object inside the current host scene.
type MeshID string

// MaterialID identifies a material inside the current host scene.
type MaterialID string

// NodeID identifies a shading-graph node created on a material.
type NodeID string

// MeshMaterial is one (mesh, material) pairing discovered in the scene.
type MeshMaterial struct {
	Mesh         MeshID
	Material     MaterialID
	MaterialName string
}

// ColorSpace tells the host how to interpret a texture's pixel data.
type ColorSpace string

const (
	ColorSpaceSRGB     ColorSpace = "sRGB"
	ColorSpaceNonColor ColorSpace = "Non-Color"
)

// SurfaceInput names an input socket on a material's surface shader.
type SurfaceInput string

const (
	InputBaseColor        SurfaceInput = "base_color"
	InputNormal           SurfaceInput = "normal"
	InputAlpha            SurfaceInput = "alpha"
	InputRoughness        SurfaceInput = "roughness"
	InputMetallic         SurfaceInput = "metallic"
	InputAmbientOcclusion SurfaceInput = "ambient_occlusion"
)

// BlendMode selects how a material composites against what is behind it.
type BlendMode string

const (
	BlendOpaque BlendMode = "opaque"
	BlendAlpha  BlendMode = "alpha"
)

// ExportSettings control the host's model export call. The zero value is not
// useful; use DefaultExportSettings.
type ExportSettings struct {
	EmbedTextures      bool   `json:"embed_textures" yaml:"embed_textures"`
	BakeSpaceTransform bool   `json:"bake_space_transform" yaml:"bake_space_transform"`
	UseSelection       bool   `json:"use_selection" yaml:"use_selection"`
	ApplyScaleOptions  string `json:"apply_scale_options" yaml:"apply_scale_options"`
}

// ScaleAll applies unit scale to all axes on export.
const ScaleAll = "FBX_SCALE_ALL"

// DefaultExportSettings returns the export defaults: loose textures, baked
// space transform, whole-scene export, scale applied to all axes.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		EmbedTextures:      false,
		BakeSpaceTransform: true,
		UseSelection:       false,
		ApplyScaleOptions:  ScaleAll,
	}
}

// Engine is the host runtime capability consumed by the pipeline. The scene
// behind it is process-wide mutable state: callers must not interleave two
// items' calls, and must ResetScene before importing a new item.
type Engine interface {
	// ResetScene discards the current scene and restores an empty baseline.
	ResetScene(ctx context.Context) error

	// ImportModel loads a model file into the scene.
	ImportModel(ctx context.Context, path string) error

	// MeshMaterials lists every (mesh, material) pairing in the scene.
	MeshMaterials(ctx context.Context) ([]MeshMaterial, error)

	// ApplyWorldTransform bakes the mesh's world transform into its vertex
	// data and resets the object's transform to identity, preserving visual
	// placement while zeroing pivot offsets.
	ApplyWorldTransform(ctx context.Context, mesh MeshID) error

	// ExportModel writes the scene to path using the given settings.
	ExportModel(ctx context.Context, path string, settings ExportSettings) error

	// AddTextureNode creates an image-texture node on the material and loads
	// the image at path with the given color-space interpretation. A decode
	// or read failure is returned as an error with no node created.
	AddTextureNode(ctx context.Context, mat MaterialID, path string, cs ColorSpace) (NodeID, error)

	// AddNormalDecodeNode creates a normal-map decoding node on the material.
	AddNormalDecodeNode(ctx context.Context, mat MaterialID) (NodeID, error)

	// LinkNodes connects from's color output to to's color input.
	LinkNodes(ctx context.Context, mat MaterialID, from, to NodeID) error

	// ConnectToSurface connects the node's output to a surface shader input.
	ConnectToSurface(ctx context.Context, mat MaterialID, node NodeID, input SurfaceInput) error

	// RemoveNode deletes a node previously created on the material.
	RemoveNode(ctx context.Context, mat MaterialID, node NodeID) error

	// HasSurfaceInput reports whether the material's surface shader exposes
	// the given input socket.
	HasSurfaceInput(ctx context.Context, mat MaterialID, input SurfaceInput) (bool, error)

	// SetBlendMode switches the material's compositing mode.
	SetBlendMode(ctx context.Context, mat MaterialID, mode BlendMode) error

	// SetShowTransparentBack toggles back-face display on alpha-blended
	// materials.
	SetShowTransparentBack(ctx context.Context, mat MaterialID, show bool) error
}
