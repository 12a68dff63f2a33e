package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/modelforge/fbxbatch/internal/host"
	"github.com/modelforge/fbxbatch/internal/models"
	"github.com/modelforge/fbxbatch/internal/texmatch"
	"github.com/modelforge/fbxbatch/internal/wiring"
)

// process runs the in-scene stage for one item: reset the host scene to its
// empty baseline, import the model, wire textures into every material, then
// bake each mesh's world transform.
func (o *Orchestrator) process(ctx context.Context, item *models.Item) error {
	if err := o.engine.ResetScene(ctx); err != nil {
		return fmt.Errorf("failed to reset scene: %w", err)
	}
	if err := o.engine.ImportModel(ctx, item.ModelPath); err != nil {
		return fmt.Errorf("failed to import %s: %w", filepath.Base(item.ModelPath), err)
	}

	pairs, err := o.engine.MeshMaterials(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scene materials: %w", err)
	}

	modelBase := modelBaseName(item.ModelPath)
	catalog := texmatch.ScanDir(filepath.Dir(item.ModelPath))
	slog.Debug("Built texture catalog", "model", modelBase, "textures", catalog.Len(), "materials", len(pairs))

	seenMats := make(map[host.MaterialID]bool)
	for _, pair := range pairs {
		if seenMats[pair.Material] {
			continue
		}
		seenMats[pair.Material] = true
		o.wireMaterial(ctx, pair, modelBase, catalog)
	}

	seenMeshes := make(map[host.MeshID]bool)
	for _, pair := range pairs {
		if seenMeshes[pair.Mesh] {
			continue
		}
		seenMeshes[pair.Mesh] = true
		if err := o.engine.ApplyWorldTransform(ctx, pair.Mesh); err != nil {
			return fmt.Errorf("failed to apply transform on mesh %s: %w", pair.Mesh, err)
		}
	}

	return nil
}

// wireMaterial resolves and wires a texture for every configured role on
// one material. A wiring failure rolls back its own nodes and the remaining
// roles still get their chance; an unmatched role is a silent skip.
func (o *Orchestrator) wireMaterial(ctx context.Context, pair host.MeshMaterial, modelBase string, catalog *texmatch.Catalog) {
	for _, role := range o.cfg.Roles() {
		suffix := o.cfg.TexturePatterns[role]
		texPath, ok := texmatch.Match(modelBase, pair.MaterialName, suffix, catalog)
		if !ok {
			slog.Debug("No texture for role", "material", pair.MaterialName, "role", role)
			continue
		}

		outcome := wiring.Wire(ctx, o.engine, pair.Material, texmatch.Role(role), texPath)
		switch outcome.Status {
		case wiring.StatusSkipped:
			slog.Debug("Wiring skipped", "material", pair.MaterialName, "role", role, "reason", outcome.Reason)
		case wiring.StatusFailed:
			slog.Error("Wiring failed", "material", pair.MaterialName, "role", role, "error", outcome.Err)
		}
	}
}
