package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"xaddonmgr/pkg/model"
)

func TestLoadHeuristicsCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heuristics.json")

	h, err := LoadHeuristics(path)
	require.NoError(t, err)
	require.NotEmpty(t, h.CategoryRules())
}

func TestSetOverrideClamped(t *testing.T) {
	dir := t.TempDir()
	h, err := LoadHeuristics(filepath.Join(dir, "heuristics.json"))
	require.NoError(t, err)

	h.SetOverride("KSEA", 150)
	v, ok := h.Override("KSEA")
	require.True(t, ok)
	require.Equal(t, 100, v)
}

func TestClearOverrides(t *testing.T) {
	dir := t.TempDir()
	h, err := LoadHeuristics(filepath.Join(dir, "heuristics.json"))
	require.NoError(t, err)

	h.SetOverride("A", 10)
	h.ClearOverrides()
	_, ok := h.Override("A")
	require.False(t, ok)
}

func TestMatchSubstringPicksFirstInPriorityOrder(t *testing.T) {
	rules := model.RuleTable{
		{Name: "low", Keywords: []string{"ortho"}, MappedValue: "OrthoBase", Priority: 10},
		{Name: "high", Keywords: []string{"orbx"}, MappedValue: "OrbxAirport", Priority: 90},
	}
	sorted := sortedByPriorityDesc(rules)
	r, ok := MatchSubstring(sorted, "Orbx_NorCal")
	require.True(t, ok)
	require.Equal(t, "OrbxAirport", r.MappedValue)
}

func TestLoadHeuristicsMergesPartialDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heuristics.json")
	h, err := LoadHeuristics(path)
	require.NoError(t, err)
	h.SetOverride("KSEA", 5)
	require.NoError(t, h.Save())

	h2, err := LoadHeuristics(path)
	require.NoError(t, err)
	v, ok := h2.Override("KSEA")
	require.True(t, ok)
	require.Equal(t, 5, v)
	require.NotEmpty(t, h2.CategoryRules())
}
