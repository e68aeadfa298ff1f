// Package plugin runs external action plugins when the player fires or
// raises and lowers the finger gun, so fingergun can drive programs that
// only understand key presses.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// Each call starts the executable, writes one JSON Request to its stdin and
// reads one JSON Response from its stdout.
package plugin

import "encoding/json"

// Event is a control event a binding can react to.
type Event string

// Control events.
const (
	EventShot     Event = "shot"
	EventArmed    Event = "armed"
	EventDisarmed Event = "disarmed"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin.
type Request struct {
	Action string          `json:"action"`
	Event  Event           `json:"event"`
	X      *float64        `json:"x"`
	Y      *float64        `json:"y"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Binding runs Action of Plugin whenever Event happens. Params are passed to
// the plugin unchanged.
type Binding struct {
	Event  Event          `yaml:"event"`
	Plugin string         `yaml:"plugin"`
	Action string         `yaml:"action"`
	Params map[string]any `yaml:"params,omitempty"`
}
