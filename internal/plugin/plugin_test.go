package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingergun/internal/control"
)

// writePlugin creates a plugin directory below root with a shell script as
// its executable and returns the plugin directory.
func writePlugin(t *testing.T, root, name, script string, actions ...string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("plugin scripts need a POSIX shell")
	}

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	manifest, err := json.Marshal(Manifest{
		Name:       name,
		Version:    "1.0.0",
		Executable: "run.sh",
		Actions:    actions,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), manifest, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"+script), 0o755))

	return dir
}

func discovered(t *testing.T, root string) *Manager {
	t.Helper()

	m := NewManager(root)
	require.NoError(t, m.Discover(context.Background()))
	return m
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "keyboard", `echo '{"success":true}'`, "keystroke")
	writePlugin(t, root, "buzzer", `echo '{"success":true}'`, "buzz")

	// Ignored: a plain file, a directory without manifest and a broken manifest.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))
	broken := filepath.Join(root, "broken")
	require.NoError(t, os.Mkdir(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, ManifestFilename), []byte("{"), 0o644))

	m := discovered(t, root)

	plugins := m.List()
	require.Len(t, plugins, 2)
	require.Equal(t, "buzzer", plugins[0].Manifest.Name)
	require.Equal(t, "keyboard", plugins[1].Manifest.Name)

	p, err := m.Get("keyboard")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "keyboard", "run.sh"), p.Executable)
	require.True(t, p.Manifest.Supports("keystroke"))
	require.False(t, p.Manifest.Supports("shortcut"))

	_, err = m.Get("broken")
	require.ErrorIs(t, err, ErrPluginNotFound)
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	m := discovered(t, filepath.Join(t.TempDir(), "nope"))
	require.Empty(t, m.List())
}

func TestExecutor_Execute(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr string
		check   func(t *testing.T, resp *Response)
	}{
		{
			name:   "echoes request",
			script: "INPUT=$(cat)\necho \"{\\\"success\\\":true,\\\"data\\\":$INPUT}\"\n",
			check: func(t *testing.T, resp *Response) {
				var req Request
				require.NoError(t, json.Unmarshal(resp.Data, &req))
				require.Equal(t, "keystroke", req.Action)
				require.Equal(t, EventShot, req.Event)
				require.InDelta(t, 0.25, *req.X, 1e-12)
				require.JSONEq(t, `{"key":"space"}`, string(req.Params))
			},
		},
		{
			name:    "reported failure",
			script:  `echo '{"success":false,"error":"no accessibility permission"}'`,
			wantErr: "no accessibility permission",
		},
		{
			name:    "exit status",
			script:  "echo boom >&2\nexit 3\n",
			wantErr: "boom",
		},
		{
			name:    "invalid response",
			script:  "echo not-json\n",
			wantErr: "parse response",
		},
		{
			name:    "timeout",
			script:  "exec sleep 5\n",
			timeout: 100 * time.Millisecond,
			wantErr: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePlugin(t, root, "p", tt.script, "keystroke")
			p, err := loadPlugin(dir)
			require.NoError(t, err)

			x, y := 0.25, 0.75
			req := &Request{
				Action: "keystroke",
				Event:  EventShot,
				X:      &x,
				Y:      &y,
				Params: json.RawMessage(`{"key":"space"}`),
			}

			resp, err := NewExecutor(tt.timeout).Execute(context.Background(), p, req)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, resp.Success)
			tt.check(t, resp)
		})
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	m := NewManager(t.TempDir())
	e := NewExecutor(0)

	_, err := NewDispatcher(m, e, []Binding{{Event: "jump", Plugin: "k", Action: "a"}})
	require.ErrorContains(t, err, "unknown event")

	_, err = NewDispatcher(m, e, []Binding{{Event: EventShot, Plugin: "k"}})
	require.ErrorContains(t, err, "required")

	d, err := NewDispatcher(m, e, nil)
	require.NoError(t, err)
	d.Fire(EventShot, control.Sample{})
	d.Close()
}

func TestDispatcher_Fire(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, "recorder", "cat >> events.jsonl\necho >> events.jsonl\necho '{\"success\":true}'\n", "record")

	d, err := NewDispatcher(discovered(t, root), NewExecutor(0), []Binding{
		{Event: EventShot, Plugin: "recorder", Action: "record", Params: map[string]any{"key": "space"}},
		{Event: EventArmed, Plugin: "recorder", Action: "record"},
		{Event: EventDisarmed, Plugin: "missing", Action: "record"},
		{Event: EventDisarmed, Plugin: "recorder", Action: "unlisted"},
	})
	require.NoError(t, err)
	d.Start(context.Background())

	x, y := 0.5, 0.4
	d.Fire(EventArmed, control.Sample{X: &x, Y: &y, Armed: true})
	d.Fire(EventShot, control.Sample{X: &x, Y: &y, Armed: true, Shoot: true})
	d.Fire(EventDisarmed, control.Sample{})
	d.Close()

	// Fired after Close: ignored.
	d.Fire(EventShot, control.Sample{})

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)

	var events []Request
	for _, line := range strings.Fields(string(data)) {
		var req Request
		require.NoError(t, json.Unmarshal([]byte(line), &req))
		events = append(events, req)
	}

	require.Len(t, events, 2)
	require.Equal(t, EventArmed, events[0].Event)
	require.Empty(t, events[0].Params)
	require.Equal(t, EventShot, events[1].Event)
	require.JSONEq(t, `{"key":"space"}`, string(events[1].Params))

	require.Equal(t, uint64(2), d.Failed())
	require.Zero(t, d.Dropped())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d, err := NewDispatcher(NewManager(t.TempDir()), NewExecutor(0), []Binding{
		{Event: EventShot, Plugin: "k", Action: "a"},
	})
	require.NoError(t, err)

	// Not started, so nothing drains the queue.
	for i := 0; i < queueSize+3; i++ {
		d.Fire(EventShot, control.Sample{})
	}
	require.Equal(t, uint64(3), d.Dropped())
}
