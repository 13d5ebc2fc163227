package store

import (
	"fmt"
	"sort"
	"sync"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/model"
)

// ActionKind is the stored kind of an entrypoint action.
type ActionKind int

const (
	ActionKindCommand ActionKind = iota
	ActionKindView
)

// String returns the kind name.
func (k ActionKind) String() string {
	switch k {
	case ActionKindCommand:
		return "command"
	case ActionKindView:
		return "view"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// MarshalText renders the kind name in JSON output.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ActionData is one action of an entrypoint. ID may be empty.
type ActionData struct {
	ID       string          `json:"id,omitempty"`
	Label    string          `json:"label"`
	Kind     ActionKind      `json:"kind"`
	Shortcut *model.Shortcut `json:"shortcut,omitempty"`
}

// Generator links an entrypoint to the generator entrypoint that produced it.
type Generator struct {
	ID   model.EntrypointID `json:"id"`
	Name string             `json:"name"`
}

// EntrypointData is the descriptive data of one entrypoint that is not
// text-indexed.
type EntrypointData struct {
	Name        string
	Generator   *Generator
	Type        model.EntrypointType
	Icon        []byte
	Frecency    float64
	Actions     []ActionData
	Accessories []model.Accessory
}

// PluginData is the metadata of one plugin. It is replaced wholesale.
type PluginData struct {
	Name        string
	Entrypoints map[model.EntrypointID]EntrypointData
}

// MetadataStore maps plugin ids to their metadata.
//
// The top-level map is copy-on-write: every mutation installs a fresh map and
// PluginData values are never modified after they are stored. A MetadataView
// taken under the lock therefore stays valid after the lock is released.
type MetadataStore struct {
	mu      sync.Mutex
	plugins map[model.PluginID]PluginData
}

// NewMetadataStore creates an empty store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{plugins: make(map[model.PluginID]PluginData)}
}

// ReplacePlugin stores data as the complete metadata of pluginID.
func (m *MetadataStore) ReplacePlugin(pluginID model.PluginID, data PluginData) {
	data = clonePluginData(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[model.PluginID]PluginData, len(m.plugins)+1)
	for id, p := range m.plugins {
		next[id] = p
	}
	next[pluginID] = data
	m.plugins = next
}

// RemovePlugin drops the metadata of pluginID. Removing an unknown plugin is a no-op.
func (m *MetadataStore) RemovePlugin(pluginID model.PluginID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plugins[pluginID]; !ok {
		return
	}
	next := make(map[model.PluginID]PluginData, len(m.plugins))
	for id, p := range m.plugins {
		if id != pluginID {
			next[id] = p
		}
	}
	m.plugins = next
}

// View returns an immutable view of the current contents.
func (m *MetadataStore) View() *MetadataView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &MetadataView{plugins: m.plugins}
}

// Entrypoint returns the metadata of one entrypoint and panics if it is absent.
func (m *MetadataStore) Entrypoint(pluginID model.PluginID, entrypointID model.EntrypointID) EntrypointData {
	return m.View().Entrypoint(pluginID, entrypointID)
}

// SnapshotView returns a deep copy suitable for external inspection.
func (m *MetadataStore) SnapshotView() map[model.PluginID]PluginView {
	return m.View().PluginViews()
}

// MetadataView is a read-only, point-in-time view of a MetadataStore.
type MetadataView struct {
	plugins map[model.PluginID]PluginData
}

// EmptyView returns a view with no plugins.
func EmptyView() *MetadataView {
	return &MetadataView{}
}

// Lookup returns the metadata of one entrypoint.
func (v *MetadataView) Lookup(pluginID model.PluginID, entrypointID model.EntrypointID) (EntrypointData, bool) {
	plugin, ok := v.plugins[pluginID]
	if !ok {
		return EntrypointData{}, false
	}
	data, ok := plugin.Entrypoints[entrypointID]
	return data, ok
}

// Entrypoint is Lookup for callers that hold an index hit. A missing entry
// means index and metadata diverged, so it panics.
func (v *MetadataView) Entrypoint(pluginID model.PluginID, entrypointID model.EntrypointID) EntrypointData {
	data, ok := v.Lookup(pluginID, entrypointID)
	if !ok {
		panic(lderrors.ConsistencyViolation("indexed entrypoint has no metadata").
			WithDetail("plugin_id", string(pluginID)).
			WithDetail("entrypoint_id", string(entrypointID)))
	}
	return data
}

// Plugin returns the metadata of one plugin.
func (v *MetadataView) Plugin(pluginID model.PluginID) (PluginData, bool) {
	p, ok := v.plugins[pluginID]
	return p, ok
}

// PluginCount returns the number of plugins.
func (v *MetadataView) PluginCount() int {
	return len(v.plugins)
}

// EntrypointCount returns the number of entrypoints across all plugins.
func (v *MetadataView) EntrypointCount() int {
	n := 0
	for _, p := range v.plugins {
		n += len(p.Entrypoints)
	}
	return n
}

// PluginIDs returns the plugin ids in sorted order.
func (v *MetadataView) PluginIDs() []model.PluginID {
	ids := make([]model.PluginID, 0, len(v.plugins))
	for id := range v.plugins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PluginViews deep-copies the view into the introspection shape.
func (v *MetadataView) PluginViews() map[model.PluginID]PluginView {
	out := make(map[model.PluginID]PluginView, len(v.plugins))
	for id, p := range v.plugins {
		entrypoints := make(map[model.EntrypointID]EntrypointView, len(p.Entrypoints))
		for eid, e := range p.Entrypoints {
			entrypoints[eid] = EntrypointView{
				Name:      e.Name,
				Generator: cloneGenerator(e.Generator),
				Type:      e.Type,
				Actions:   cloneActions(e.Actions),
			}
		}
		out[id] = PluginView{Name: p.Name, Entrypoints: entrypoints}
	}
	return out
}

// PluginView is the introspection shape of a plugin, used by settings screens.
type PluginView struct {
	Name        string                                `json:"name"`
	Entrypoints map[model.EntrypointID]EntrypointView `json:"entrypoints"`
}

// EntrypointView omits icon, frecency and accessories.
type EntrypointView struct {
	Name      string               `json:"name"`
	Generator *Generator           `json:"generator,omitempty"`
	Type      model.EntrypointType `json:"type"`
	Actions   []ActionData         `json:"actions"`
}

func clonePluginData(p PluginData) PluginData {
	out := PluginData{
		Name:        p.Name,
		Entrypoints: make(map[model.EntrypointID]EntrypointData, len(p.Entrypoints)),
	}
	for id, e := range p.Entrypoints {
		e.Generator = cloneGenerator(e.Generator)
		e.Icon = append([]byte(nil), e.Icon...)
		e.Actions = cloneActions(e.Actions)
		e.Accessories = append([]model.Accessory(nil), e.Accessories...)
		out.Entrypoints[id] = e
	}
	return out
}

func cloneGenerator(g *Generator) *Generator {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

func cloneActions(actions []ActionData) []ActionData {
	if actions == nil {
		return nil
	}
	out := make([]ActionData, len(actions))
	for i, a := range actions {
		if a.Shortcut != nil {
			sc := *a.Shortcut
			a.Shortcut = &sc
		}
		out[i] = a
	}
	return out
}
