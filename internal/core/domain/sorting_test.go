package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorWithSort(t *testing.T, reg *Registry, name string, sort float64) *Document {
	t.Helper()
	doc, err := NewDocument(reg, "Actor", map[string]any{"_id": RandomID(), "name": name, "sort": sort}, nil)
	require.NoError(t, err)
	return doc
}

func TestSortRelative_FitsBetween(t *testing.T) {
	reg := BuiltinRegistry()
	a := actorWithSort(t, reg, "A", 100000)
	b := actorWithSort(t, reg, "B", 200000)
	target := actorWithSort(t, reg, "T", 0)

	patches := SortRelative(target, []*Document{a, b, target}, a.ID())

	require.Len(t, patches, 1, "only the target moves when a gap exists")
	assert.Equal(t, target.ID(), patches[0]["_id"])
	sort := patches[0]["sort"].(float64)
	assert.Greater(t, sort, 100000.0)
	assert.Less(t, sort, 200000.0)
}

func TestSortRelative_First(t *testing.T) {
	reg := BuiltinRegistry()
	a := actorWithSort(t, reg, "A", 100000)
	target := actorWithSort(t, reg, "T", 0)

	patches := SortRelative(target, []*Document{a, target}, "")

	require.Len(t, patches, 1)
	assert.Less(t, patches[0]["sort"].(float64), 100000.0)
}

func TestSortRelative_RenumbersWhenPacked(t *testing.T) {
	reg := BuiltinRegistry()
	a := actorWithSort(t, reg, "A", 1)
	b := actorWithSort(t, reg, "B", 2)
	target := actorWithSort(t, reg, "T", 0)

	patches := SortRelative(target, []*Document{a, b, target}, a.ID())

	require.GreaterOrEqual(t, len(patches), 3, "no gap forces a renumber")
	bySort := map[string]float64{}
	for _, p := range patches {
		bySort[p["_id"].(string)] = p["sort"].(float64)
	}
	assert.Less(t, bySort[a.ID()], bySort[target.ID()])
	assert.Less(t, bySort[target.ID()], bySort[b.ID()])
}
