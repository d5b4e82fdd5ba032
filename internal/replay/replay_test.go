package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "meta": {"gameId": "g-1", "map": "Supreme Isthmus", "durationMs": 600000, "startTime": "2026-02-05T06:46:10Z", "engineVersion": "2025.06.12"},
  "players": [
    {"playerId": 0, "userId": 1001, "name": "alpha", "teamId": 0, "allyTeamId": 0, "skill": "[25.1]", "rank": 3},
    {"playerId": 1, "userId": 1002, "name": "bravo", "teamId": 1, "allyTeamId": 1}
  ],
  "events": [
    {"playerId": 0, "gameTimeSeconds": 1.5, "eventType": "COMMAND", "payload": {"cmdName": "MOVE"}},
    {"playerId": 1, "gameTimeSeconds": 1.6, "eventType": "SELECT", "payload": {"selectedUnitIds": [1, 2, 3]}},
    {"gameTimeSeconds": 2.0, "eventType": "CHAT"}
  ]
}`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(validDocument))
	require.NoError(t, err)

	assert.Equal(t, "g-1", doc.Meta.GameID)
	assert.Equal(t, int64(600000), doc.Meta.DurationMs)
	require.Len(t, doc.Players, 2)
	assert.Equal(t, int64(1001), doc.Players[0].UserID)
	require.Len(t, doc.Events, 3)

	assert.Equal(t, EventCommand, doc.Events[0].Type)
	require.NotNil(t, doc.Events[0].PlayerID)
	assert.Equal(t, 0, *doc.Events[0].PlayerID)
	assert.Equal(t, "MOVE", doc.Events[0].Payload.CmdName)
	assert.InDelta(t, 1500.0, doc.Events[0].TimestampMs(), 1e-9)

	assert.Len(t, doc.Events[1].Payload.SelectedUnitIDs, 3)
	assert.Nil(t, doc.Events[2].PlayerID)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"meta":`},
		{"missing meta", `{"players": [], "events": []}`},
		{"empty game id", `{"meta": {"gameId": "", "durationMs": 1}, "players": [], "events": []}`},
		{"negative time", `{"meta": {"gameId": "g", "durationMs": 1}, "players": [], "events": [{"gameTimeSeconds": -1, "eventType": "COMMAND"}]}`},
		{"player without user", `{"meta": {"gameId": "g", "durationMs": 1}, "players": [{"playerId": 0, "name": "x"}], "events": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.json")
	require.NoError(t, os.WriteFile(path, []byte(validDocument), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g-1", doc.Meta.GameID)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRoster(t *testing.T) {
	doc, err := Decode([]byte(validDocument))
	require.NoError(t, err)

	roster := doc.Roster()
	assert.Equal(t, "alpha", roster[0].Name)
	assert.Equal(t, "bravo", roster[1].Name)
	_, ok := roster[7]
	assert.False(t, ok)
}

func TestIsDocument(t *testing.T) {
	exts := []string{".json", ".replay.json"}
	assert.True(t, IsDocument("/tmp/a.json", exts))
	assert.False(t, IsDocument("/tmp/a.sdfz", exts))
	assert.False(t, IsDocument("/tmp/a", exts))
}
