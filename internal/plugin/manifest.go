// Package plugin reads plugin manifests: YAML files describing a plugin and
// the entrypoints it contributes to the search index.
//
//	id: dev
//	name: Dev Tools
//	entrypoints:
//	  - id: term
//	    name: Open Terminal
//	    type: command
//	    frecency: 0.9
//	    icon: icons/terminal.png
//	    actions:
//	      - id: run
//	        label: Run
//	        shortcut: ctrl+shift+T
//	    accessories:
//	      - text: beta
//	        tooltip: Experimental
package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/store"
)

// Manifest is the on-disk form of a plugin.
type Manifest struct {
	// ID defaults to the file name without extension.
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Entrypoints []EntrypointDef `yaml:"entrypoints"`
}

// EntrypointDef is one entrypoint of a manifest.
type EntrypointDef struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Frecency    float64        `yaml:"frecency"`
	Icon        string         `yaml:"icon"`
	Generator   *GeneratorDef  `yaml:"generator"`
	Actions     []ActionDef    `yaml:"actions"`
	Accessories []AccessoryDef `yaml:"accessories"`
}

// GeneratorDef names the generator entrypoint that produced an entrypoint.
type GeneratorDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ActionDef is an entrypoint action.
type ActionDef struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Type     string `yaml:"type"`
	Shortcut string `yaml:"shortcut"`
}

// AccessoryDef is a badge; Text makes it a text accessory, otherwise Icon is
// required.
type AccessoryDef struct {
	Text    string `yaml:"text"`
	Icon    string `yaml:"icon"`
	Tooltip string `yaml:"tooltip"`
}

// Plugin is a loaded manifest, ready for Coordinator.SaveForPlugin.
type Plugin struct {
	ID    model.PluginID
	Name  string
	Path  string
	Items []index.IndexItem
}

// IsManifest reports whether path has a manifest extension.
func IsManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(path), ".")
	}
	return false
}

// IDFromPath returns the plugin id a manifest at path gets when it does not
// set one.
func IDFromPath(path string) model.PluginID {
	base := filepath.Base(path)
	return model.PluginID(strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadFile reads and validates the manifest at path. Icon paths are resolved
// relative to the manifest.
func LoadFile(path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lderrors.New(lderrors.ErrCodeManifestNotFound, "plugin manifest not found", err).
				WithDetail("path", path)
		}
		return nil, manifestError(path, "failed to read plugin manifest", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, manifestError(path, "plugin manifest is empty", nil)
		}
		return nil, manifestError(path, "failed to parse plugin manifest", err)
	}
	if m.ID == "" {
		m.ID = string(IDFromPath(path))
	}

	return m.build(path)
}

func (m *Manifest) build(path string) (*Plugin, error) {
	if strings.TrimSpace(m.Name) == "" {
		return nil, manifestError(path, "plugin name is required", nil)
	}

	p := &Plugin{
		ID:    model.PluginID(m.ID),
		Name:  m.Name,
		Path:  path,
		Items: make([]index.IndexItem, 0, len(m.Entrypoints)),
	}
	seen := make(map[string]bool, len(m.Entrypoints))
	for i, def := range m.Entrypoints {
		item, err := def.build(filepath.Dir(path))
		if err != nil {
			return nil, manifestError(path, "invalid entrypoint", err).
				WithDetail("entrypoint", fmt.Sprintf("#%d %s", i+1, def.ID))
		}
		if seen[def.ID] {
			return nil, manifestError(path, "duplicate entrypoint id", nil).
				WithDetail("entrypoint_id", def.ID)
		}
		seen[def.ID] = true
		p.Items = append(p.Items, item)
	}
	return p, nil
}

func (d *EntrypointDef) build(dir string) (index.IndexItem, error) {
	if d.ID == "" {
		return index.IndexItem{}, errors.New("id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return index.IndexItem{}, errors.New("name is required")
	}
	typ, err := model.ParseEntrypointType(d.Type)
	if err != nil {
		return index.IndexItem{}, err
	}

	item := index.IndexItem{
		ID:       model.EntrypointID(d.ID),
		Name:     d.Name,
		Type:     typ,
		Frecency: d.Frecency,
	}

	if d.Generator != nil {
		if d.Generator.ID == "" {
			return index.IndexItem{}, errors.New("generator id is required")
		}
		item.Generator = &store.Generator{
			ID:   model.EntrypointID(d.Generator.ID),
			Name: d.Generator.Name,
		}
	}

	if d.Icon != "" {
		iconPath := d.Icon
		if !filepath.IsAbs(iconPath) {
			iconPath = filepath.Join(dir, iconPath)
		}
		icon, err := os.ReadFile(iconPath)
		if err != nil {
			return index.IndexItem{}, fmt.Errorf("read icon: %w", err)
		}
		item.Icon = icon
	}

	for _, a := range d.Actions {
		action, err := a.build()
		if err != nil {
			return index.IndexItem{}, err
		}
		item.Actions = append(item.Actions, action)
	}

	for _, a := range d.Accessories {
		switch {
		case a.Text != "":
			item.Accessories = append(item.Accessories, model.TextAccessory(a.Text, a.Icon, a.Tooltip))
		case a.Icon != "":
			item.Accessories = append(item.Accessories, model.IconAccessory(a.Icon, a.Tooltip))
		default:
			return index.IndexItem{}, errors.New("accessory needs text or icon")
		}
	}
	return item, nil
}

func (a ActionDef) build() (index.ItemAction, error) {
	if a.ID == "" {
		return index.ItemAction{}, errors.New("action id is required")
	}

	action := index.ItemAction{ID: a.ID, Label: a.Label, Type: model.ActionCommand}
	switch strings.ToLower(a.Type) {
	case "", "command":
	case "view":
		action.Type = model.ActionView
	default:
		return index.ItemAction{}, fmt.Errorf("action %q has unknown type %q", a.ID, a.Type)
	}

	if a.Shortcut != "" {
		sc, err := model.ParseShortcut(a.Shortcut)
		if err != nil {
			return index.ItemAction{}, err
		}
		action.Shortcut = &sc
	}
	return action, nil
}

func manifestError(path, message string, cause error) *lderrors.Error {
	return lderrors.ManifestError(message, cause).WithDetail("path", path)
}
