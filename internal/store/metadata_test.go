package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/model"
)

func samplePlugin(name string, entrypoints ...string) PluginData {
	p := PluginData{Name: name, Entrypoints: map[model.EntrypointID]EntrypointData{}}
	for i, e := range entrypoints {
		p.Entrypoints[model.EntrypointID(e)] = EntrypointData{
			Name:     e,
			Type:     model.EntrypointCommand,
			Frecency: float64(i),
			Actions: []ActionData{
				{Label: "Run", Kind: ActionKindCommand, Shortcut: &model.Shortcut{Key: "R", Control: true}},
			},
		}
	}
	return p
}

func TestMetadataStore_ReplaceIsWholesale(t *testing.T) {
	// Given: a plugin with two entrypoints
	m := NewMetadataStore()
	m.ReplacePlugin("p", samplePlugin("P", "a", "b"))

	// When: replacing it with one entrypoint
	m.ReplacePlugin("p", samplePlugin("P2", "c"))

	// Then: nothing from the old data survives
	view := m.View()
	_, ok := view.Lookup("p", "a")
	assert.False(t, ok)
	p, ok := view.Plugin("p")
	require.True(t, ok)
	assert.Equal(t, "P2", p.Name)
	assert.Len(t, p.Entrypoints, 1)
}

func TestMetadataStore_ViewIsStable(t *testing.T) {
	// Given: a view taken before mutation
	m := NewMetadataStore()
	m.ReplacePlugin("p", samplePlugin("P", "a"))
	view := m.View()

	// When: the store changes
	m.RemovePlugin("p")
	m.ReplacePlugin("q", samplePlugin("Q", "b"))

	// Then: the old view is unaffected
	_, ok := view.Lookup("p", "a")
	assert.True(t, ok)
	assert.Equal(t, 1, view.PluginCount())
	assert.Equal(t, []model.PluginID{"q"}, m.View().PluginIDs())
}

func TestMetadataStore_CopiesCallerData(t *testing.T) {
	data := samplePlugin("P", "a")
	m := NewMetadataStore()
	m.ReplacePlugin("p", data)

	// Mutating the caller's data after the fact must not leak in.
	data.Entrypoints["a"].Actions[0].Shortcut.Key = "Z"
	data.Entrypoints["z"] = EntrypointData{Name: "z"}

	got := m.Entrypoint("p", "a")
	assert.Equal(t, "R", got.Actions[0].Shortcut.Key)
	_, ok := m.View().Lookup("p", "z")
	assert.False(t, ok)
}

func TestMetadataStore_RemoveIsScoped(t *testing.T) {
	m := NewMetadataStore()
	m.ReplacePlugin("p", samplePlugin("P", "a"))
	m.ReplacePlugin("q", samplePlugin("Q", "a", "b"))
	before, _ := m.View().Plugin("q")

	m.RemovePlugin("p")
	m.RemovePlugin("unknown")

	after, ok := m.View().Plugin("q")
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, m.View().EntrypointCount())
}

func TestMetadataView_EntrypointPanicsWhenMissing(t *testing.T) {
	view := NewMetadataStore().View()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*lderrors.Error)
		require.True(t, ok)
		assert.Equal(t, lderrors.ErrCodeConsistencyViolated, err.Code)
		assert.True(t, lderrors.IsFatal(err))
		assert.Equal(t, "p", err.Details["plugin_id"])
	}()
	view.Entrypoint("p", "missing")
}

func TestMetadataStore_SnapshotViewIsDeepCopy(t *testing.T) {
	// Given: a plugin with a generator-produced entrypoint
	m := NewMetadataStore()
	data := samplePlugin("P", "a")
	e := data.Entrypoints["a"]
	e.Generator = &Generator{ID: "gen", Name: "Generator"}
	e.Icon = []byte{1, 2, 3}
	data.Entrypoints["a"] = e
	m.ReplacePlugin("p", data)

	// When: taking a snapshot view and mutating it
	snap := m.SnapshotView()
	view := snap["p"].Entrypoints["a"]
	view.Generator.Name = "changed"
	view.Actions[0].Label = "changed"

	// Then: the store is unaffected
	got := m.Entrypoint("p", "a")
	assert.Equal(t, "Generator", got.Generator.Name)
	assert.Equal(t, "Run", got.Actions[0].Label)
	assert.Equal(t, "P", snap["p"].Name)
	assert.Equal(t, model.EntrypointCommand, view.Type)
}

func TestActionKind_String(t *testing.T) {
	assert.Equal(t, "command", ActionKindCommand.String())
	assert.Equal(t, "view", ActionKindView.String())
	assert.Equal(t, "ActionKind(7)", ActionKind(7).String())
}
