package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShortcut(t *testing.T) {
	tests := []struct {
		in      string
		want    Shortcut
		wantErr bool
	}{
		{in: "K", want: Shortcut{Key: "K"}},
		{in: "ctrl+shift+K", want: Shortcut{Key: "K", Control: true, Shift: true}},
		{in: "Cmd+Alt+Enter", want: Shortcut{Key: "Enter", Meta: true, Alt: true}},
		{in: "ctrl+", wantErr: true},
		{in: "hyper+K", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseShortcut(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortcut_String_RoundTrips(t *testing.T) {
	sc := Shortcut{Key: "T", Control: true, Shift: true}
	assert.Equal(t, "ctrl+shift+T", sc.String())

	parsed, err := ParseShortcut(sc.String())
	require.NoError(t, err)
	assert.Equal(t, sc, parsed)
}

func TestParseEntrypointType(t *testing.T) {
	got, err := ParseEntrypointType("View")
	require.NoError(t, err)
	assert.Equal(t, EntrypointView, got)

	got, err = ParseEntrypointType("")
	require.NoError(t, err)
	assert.Equal(t, EntrypointCommand, got, "empty defaults to command")

	_, err = ParseEntrypointType("widget")
	assert.Error(t, err)
}

func TestAccessoryConstructors(t *testing.T) {
	text := TextAccessory("3 new", "", "unread")
	assert.Equal(t, AccessoryText, text.Kind)
	assert.Equal(t, "3 new", text.Text)

	icon := IconAccessory("star", "")
	assert.Equal(t, AccessoryIcon, icon.Kind)
	assert.Empty(t, icon.Text)
}
