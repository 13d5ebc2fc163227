// Package model defines the identifiers and display records shared between
// the search index and its callers.
package model

import (
	"fmt"
	"strings"
)

// PluginID identifies a plugin. Compared by value.
type PluginID string

// String returns the raw identifier.
func (id PluginID) String() string { return string(id) }

// EntrypointID identifies an entrypoint within a plugin. Compared by value.
type EntrypointID string

// String returns the raw identifier.
func (id EntrypointID) String() string { return string(id) }

// EntrypointType classifies an entrypoint.
type EntrypointType string

const (
	EntrypointCommand          EntrypointType = "command"
	EntrypointView             EntrypointType = "view"
	EntrypointInlineView       EntrypointType = "inline-view"
	EntrypointGeneratedCommand EntrypointType = "generated-command"
)

// ParseEntrypointType converts a manifest string into an EntrypointType.
func ParseEntrypointType(s string) (EntrypointType, error) {
	switch t := EntrypointType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntrypointCommand, EntrypointView, EntrypointInlineView, EntrypointGeneratedCommand:
		return t, nil
	case "":
		return EntrypointCommand, nil
	default:
		return "", fmt.Errorf("unknown entrypoint type %q", s)
	}
}

// ActionType is the action kind as presented to the front end.
type ActionType string

const (
	ActionCommand ActionType = "command"
	ActionView    ActionType = "view"
)

// Shortcut is a physical keyboard shortcut.
type Shortcut struct {
	Key     string `json:"key" yaml:"key"`
	Shift   bool   `json:"shift,omitempty" yaml:"shift"`
	Control bool   `json:"control,omitempty" yaml:"control"`
	Alt     bool   `json:"alt,omitempty" yaml:"alt"`
	Meta    bool   `json:"meta,omitempty" yaml:"meta"`
}

// String renders the shortcut as "ctrl+shift+K".
func (s Shortcut) String() string {
	var parts []string
	if s.Meta {
		parts = append(parts, "meta")
	}
	if s.Control {
		parts = append(parts, "ctrl")
	}
	if s.Alt {
		parts = append(parts, "alt")
	}
	if s.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, s.Key), "+")
}

// ParseShortcut parses "ctrl+shift+K" style strings. Modifiers are
// case-insensitive; the final segment is the key.
func ParseShortcut(s string) (Shortcut, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return Shortcut{}, fmt.Errorf("shortcut %q has no key", s)
	}

	sc := Shortcut{Key: key}
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "shift":
			sc.Shift = true
		case "ctrl", "control":
			sc.Control = true
		case "alt", "opt", "option":
			sc.Alt = true
		case "meta", "cmd", "super":
			sc.Meta = true
		default:
			return Shortcut{}, fmt.Errorf("shortcut %q has unknown modifier %q", s, p)
		}
	}
	return sc, nil
}

// AccessoryKind distinguishes text badges from icon-only badges.
type AccessoryKind string

const (
	AccessoryText AccessoryKind = "text"
	AccessoryIcon AccessoryKind = "icon"
)

// Accessory is a small badge displayed next to a result.
// Text accessories always carry Text; icon accessories always carry Icon.
type Accessory struct {
	Kind    AccessoryKind `json:"kind"`
	Text    string        `json:"text,omitempty"`
	Icon    string        `json:"icon,omitempty"`
	Tooltip string        `json:"tooltip,omitempty"`
}

// TextAccessory builds a text badge.
func TextAccessory(text, icon, tooltip string) Accessory {
	return Accessory{Kind: AccessoryText, Text: text, Icon: icon, Tooltip: tooltip}
}

// IconAccessory builds an icon-only badge.
func IconAccessory(icon, tooltip string) Accessory {
	return Accessory{Kind: AccessoryIcon, Icon: icon, Tooltip: tooltip}
}

// ResultAction is an action attached to a search result.
type ResultAction struct {
	ActionType ActionType `json:"action_type"`
	Label      string     `json:"label"`
	Shortcut   *Shortcut  `json:"shortcut,omitempty"`
}

// SearchResult is one display record returned by a search.
type SearchResult struct {
	EntrypointType          EntrypointType `json:"entrypoint_type"`
	EntrypointName          string         `json:"entrypoint_name"`
	EntrypointGeneratorName string         `json:"entrypoint_generator_name,omitempty"`
	EntrypointID            EntrypointID   `json:"entrypoint_id"`
	EntrypointIcon          []byte         `json:"entrypoint_icon,omitempty"`
	PluginName              string         `json:"plugin_name"`
	PluginID                PluginID       `json:"plugin_id"`
	EntrypointActions       []ResultAction `json:"entrypoint_actions"`
	EntrypointAccessories   []Accessory    `json:"entrypoint_accessories"`
}

// HasGenerator reports whether the result was produced by a generator entrypoint.
func (r SearchResult) HasGenerator() bool {
	return r.EntrypointGeneratorName != ""
}
