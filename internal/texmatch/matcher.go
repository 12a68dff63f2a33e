// Package texmatch resolves texture files for semantic texture roles by
// filename convention. Matching is pure: it reads a prebuilt catalog and
// never touches host scene state.
package texmatch

import (
	"fmt"
	"strings"
)

// Role is a semantic texture slot, independent of any specific file.
type Role string

const (
	RoleDiffuse          Role = "diffuse"
	RoleNormal           Role = "normal"
	RoleOpacity          Role = "opacity"
	RoleRoughness        Role = "roughness"
	RoleMetallic         Role = "metallic"
	RoleAmbientOcclusion Role = "ambient_occlusion"
)

// NormalizeMaterialName replaces literal dots with underscores. Host
// runtimes suffix duplicate material names with a dot-number ("Arm.001");
// texture files on disk use the underscore form.
func NormalizeMaterialName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Candidates returns the candidate filename stems for one (role, model,
// material) combination, most specific first:
//
//	T_{model}_{material}{suffix}
//	T_{model}{suffix}
//	{material}{suffix}
//	{model}{suffix}
//
// An empty suffix means the role has no configured pattern: no candidates
// are produced and the role can never match.
func Candidates(modelBase, materialName, suffix string) []string {
	if suffix == "" {
		return nil
	}
	mat := NormalizeMaterialName(materialName)
	return []string{
		fmt.Sprintf("T_%s_%s%s", modelBase, mat, suffix),
		fmt.Sprintf("T_%s%s", modelBase, suffix),
		mat + suffix,
		modelBase + suffix,
	}
}

// Match resolves the texture file for one role. Candidates are tried in
// priority order; the first stem present in the catalog wins and the rest
// are never evaluated. Comparison is case-insensitive on the stem only.
// No match returns ok=false — an unmatched role is not an error.
func Match(modelBase, materialName, suffix string, catalog *Catalog) (path string, ok bool) {
	for _, stem := range Candidates(modelBase, materialName, suffix) {
		if p, found := catalog.Lookup(stem); found {
			return p, true
		}
	}
	return "", false
}
