package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    Action
		wantErr bool
	}{
		{name: "start", data: `{"type":"CONTROL","action":"START"}`, want: ActionStart},
		{name: "pause", data: `{"type":"CONTROL","action":"PAUSE"}`, want: ActionPause},
		{name: "reset", data: `{"type":"CONTROL","action":"RESET"}`, want: ActionReset},
		{name: "invalid json", data: `{"type":`, wantErr: true},
		{name: "unknown type", data: `{"type":"HELLO","action":"START"}`, wantErr: true},
		{name: "unknown action", data: `{"type":"CONTROL","action":"FIRE"}`, wantErr: true},
		{name: "lower case action", data: `{"type":"CONTROL","action":"start"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseMessage([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	p := NewPreview()
	frame, seq := p.Latest()
	require.Nil(t, frame)
	require.Zero(t, seq)

	p.Publish([]byte{1})
	p.Publish([]byte{2})
	frame, seq = p.Latest()
	require.Equal(t, []byte{2}, frame)
	require.Equal(t, uint64(2), seq)
}
