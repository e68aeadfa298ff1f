package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrowserURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: ":8080", want: "http://localhost:8080"},
		{addr: "127.0.0.1:9000", want: "http://127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			require.Equal(t, tt.want, browserURL(tt.addr))
		})
	}
}

func TestFindWebDir_Override(t *testing.T) {
	require.Equal(t, "/srv/web", findWebDir("/srv/web"))
}

func TestFindWebDir_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "web"), 0o755))
	t.Chdir(dir)

	want, err := filepath.EvalSymlinks(filepath.Join(dir, "web"))
	require.NoError(t, err)

	got, err := filepath.EvalSymlinks(findWebDir(""))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	recording := filepath.Join(dir, "rec.jsonl")
	require.NoError(t, os.WriteFile(recording, []byte(`{"hand":null,"t_ms":0}`+"\n"), 0o600))

	configPath = filepath.Join(dir, "missing.yaml")
	logLevel = "error"
	t.Cleanup(func() {
		configPath, logLevel = "", ""
	})

	var out bytes.Buffer
	replayCmd.SetOut(&out)
	t.Cleanup(func() { replayCmd.SetOut(nil) })

	require.NoError(t, replayCmd.RunE(replayCmd, []string{recording}))
	require.JSONEq(t, `{"x":null,"y":null,"armed":false,"shoot":false}`, out.String())
}
