// Package validator detects layering mistakes in an ordered pack list:
// shadowed meshes, meshes sorted above overlapping overlays, simHeaven
// fluff below Global Airports, and empty packs. Each issue carries a fix
// suggestion; AutoFix applies the mesh_above_overlay remedy.
package validator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"xaddonmgr/pkg/model"
)

// Validate runs a stateless pass over the ordered pack list and reports
// every layering issue found.
func Validate(packs []model.SceneryPack) model.ValidationReport {
	var issues []model.ValidationIssue
	issues = append(issues, findShadowedMesh(packs)...)
	issues = append(issues, findMeshAboveOverlay(packs)...)
	issues = append(issues, findSimheavenBelowGlobal(packs)...)
	issues = append(issues, findEmptyPacks(packs)...)
	return model.ValidationReport{Issues: issues}
}

func isMeshKind(c model.SceneryCategory) bool {
	switch c {
	case model.CategoryMesh, model.CategorySpecificMesh, model.CategoryOrthoBase:
		return true
	}
	return false
}

func tileSet(p model.SceneryPack) map[model.Tile]bool {
	set := make(map[model.Tile]bool, len(p.Tiles))
	for _, t := range p.Tiles {
		set[t] = true
	}
	return set
}

// isSubset reports whether a's tiles are all contained in b's tile set.
func isSubset(a []model.Tile, b map[model.Tile]bool) bool {
	if len(a) == 0 {
		return false
	}
	for _, t := range a {
		if !b[t] {
			return false
		}
	}
	return true
}

func overlaps(a []model.Tile, b map[model.Tile]bool) bool {
	for _, t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

// findShadowedMesh flags a mesh/ortho pack whose tile set is a subset of a
// higher-priority pack of the same kind: it will never be seen.
func findShadowedMesh(packs []model.SceneryPack) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for i, lower := range packs {
		if !isMeshKind(lower.Category) || lower.Status != model.StatusActive {
			continue
		}
		for j := 0; j < i; j++ {
			upper := packs[j]
			if !isMeshKind(upper.Category) || upper.Status != model.StatusActive {
				continue
			}
			if isSubset(lower.Tiles, tileSet(upper)) {
				issues = append(issues, model.ValidationIssue{
					ID:        uuid.NewString(),
					IssueType: model.IssueShadowedMesh,
					PackName:  lower.Name,
					Severity:  model.SeverityWarning,
					Message:   fmt.Sprintf("%q is fully shadowed by %q", lower.Name, upper.Name),
					Details: fmt.Sprintf("All %d tiles of %q are also covered by the higher-priority %q; the lower pack will never render.",
						len(lower.Tiles), lower.Name, upper.Name),
					FixSuggestion: fmt.Sprintf("Disable %q or move it above %q.", lower.Name, upper.Name),
				})
				break
			}
		}
	}
	return issues
}

// findMeshAboveOverlay flags any mesh/ortho pack ordered above a regional
// overlay whose tiles it overlaps: the overlay's content would be buried.
func findMeshAboveOverlay(packs []model.SceneryPack) []model.ValidationIssue {
	var issues []model.ValidationIssue
	flagged := map[string]bool{}
	for i, mesh := range packs {
		if !isMeshKind(mesh.Category) || mesh.Status != model.StatusActive || flagged[mesh.Name] {
			continue
		}
		meshTiles := tileSet(mesh)
		for j := i + 1; j < len(packs); j++ {
			overlay := packs[j]
			if overlay.Category != model.CategoryRegionalOverlay || overlay.Status != model.StatusActive {
				continue
			}
			if overlaps(overlay.Tiles, meshTiles) {
				issues = append(issues, model.ValidationIssue{
					ID:        uuid.NewString(),
					IssueType: model.IssueMeshAboveOverlay,
					PackName:  mesh.Name,
					Severity:  model.SeverityWarning,
					Message:   fmt.Sprintf("%q loads above overlay %q it overlaps", mesh.Name, overlay.Name),
					Details:   "Mesh and ortho base layers must load below the overlays that decorate them.",
					FixSuggestion: fmt.Sprintf("Pin %q to score %d so it sorts into the base band.",
						mesh.Name, AutoFixMeshScore),
				})
				flagged[mesh.Name] = true
				break
			}
		}
	}
	return issues
}

// findSimheavenBelowGlobal flags RegionalFluff packs sorted below the
// Global Airports entry; simHeaven-style overlays are designed to sit above
// the global layer.
func findSimheavenBelowGlobal(packs []model.SceneryPack) []model.ValidationIssue {
	globalIdx := -1
	for i, p := range packs {
		if p.Category == model.CategoryGlobalAirport || strings.Contains(strings.ToLower(p.Name), "global airports") || p.Name == "*GLOBAL_AIRPORTS*" {
			globalIdx = i
			break
		}
	}
	if globalIdx < 0 {
		return nil
	}

	var issues []model.ValidationIssue
	for i := globalIdx + 1; i < len(packs); i++ {
		p := packs[i]
		if p.Category != model.CategoryRegionalFluff || p.Status != model.StatusActive {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			ID:            uuid.NewString(),
			IssueType:     model.IssueSimheavenBelowGlobal,
			PackName:      p.Name,
			Severity:      model.SeverityInfo,
			Message:       fmt.Sprintf("%q sorts below Global Airports", p.Name),
			Details:       "Regional enhancement overlays usually belong above the Global Airports layer.",
			FixSuggestion: fmt.Sprintf("Pin %q to a score below %d.", p.Name, model.CategoryBaseline[model.CategoryGlobalAirport]),
		})
	}
	return issues
}

// findEmptyPacks flags packs with neither airports nor tiles, excepting
// libraries, virtual groups, global base packs and the Global Airports
// entry, which are not flagged for carrying no placeable content.
func findEmptyPacks(packs []model.SceneryPack) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for _, p := range packs {
		if !p.IsEmpty() || p.Status != model.StatusActive {
			continue
		}
		switch p.Category {
		case model.CategoryLibrary, model.CategoryGroup, model.CategoryGlobalBase, model.CategoryGlobalAirport:
			continue
		}
		if p.Name == "*GLOBAL_AIRPORTS*" {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			ID:            uuid.NewString(),
			IssueType:     model.IssueEmptyPack,
			PackName:      p.Name,
			Severity:      model.SeverityCritical,
			Message:       fmt.Sprintf("%q contains no airports or tiles", p.Name),
			Details:       fmt.Sprintf("Health score %d. The folder may be an incomplete install or a wrapper whose real pack sits deeper than discovery reaches.", p.HealthScore()),
			FixSuggestion: "Check the folder's contents, or disable the pack.",
		})
	}
	return issues
}

// AutoFixMeshScore is the override value the mesh_above_overlay auto-fix
// pins an offending pack to.
const AutoFixMeshScore = 60

// OverrideSetter is the slice of the heuristics document AutoFix needs.
type OverrideSetter interface {
	SetOverride(name string, score int)
}

// AutoFix applies the remedy for every fixable issue in the report: for
// mesh_above_overlay it pins the pack to the mesh band score. The caller
// re-sorts afterwards; applying AutoFix then re-validating yields zero
// issues of that type. Returns the names of the packs it pinned.
func AutoFix(report model.ValidationReport, overrides OverrideSetter) []string {
	var fixed []string
	for _, issue := range report.Issues {
		if issue.IssueType != model.IssueMeshAboveOverlay {
			continue
		}
		overrides.SetOverride(issue.PackName, AutoFixMeshScore)
		fixed = append(fixed, issue.PackName)
	}
	return fixed
}
