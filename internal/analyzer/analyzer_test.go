package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barsentry/internal/forensics"
	"barsentry/internal/replay"
	"barsentry/internal/store"
)

const (
	botPlayer   = 0
	humanPlayer = 1
	idlePlayer  = 2
	ghostPlayer = 7

	botUser   int64 = 5001
	humanUser int64 = 5002
	idleUser  int64 = 5003
)

func intPtr(v int) *int { return &v }

func command(player int, ms int) replay.Event {
	return replay.Event{
		PlayerID:        intPtr(player),
		GameTimeSeconds: float64(ms) / 1000,
		Type:            replay.EventCommand,
		Payload:         replay.Payload{CmdName: "MOVE"},
	}
}

// testDocument has a metronomic bot (100 commands 150ms apart), a human
// with irregular pacing, a player below the action minimum and a player
// missing from the roster.
func testDocument(gameID string) *replay.Document {
	doc := &replay.Document{
		Meta: replay.GameMeta{
			GameID:        gameID,
			Map:           "Supreme Isthmus",
			DurationMs:    600000,
			StartTime:     "2026-02-05T06:46:10Z",
			EngineVersion: "2025.06.12",
		},
		Players: []replay.PlayerInfo{
			{PlayerID: botPlayer, UserID: botUser, Name: "metronome", TeamID: 0, AllyTeamID: 0, Skill: "[30.0]", Rank: 5},
			{PlayerID: humanPlayer, UserID: humanUser, Name: "human", TeamID: 1, AllyTeamID: 1},
			{PlayerID: idlePlayer, UserID: idleUser, Name: "idle", TeamID: 2, AllyTeamID: 0},
		},
	}

	for i := 0; i < 100; i++ {
		doc.Events = append(doc.Events, command(botPlayer, 1000+i*150))
	}
	ms := 2000
	for i := 0; i < 40; i++ {
		ms += 300 + (i*137)%900
		doc.Events = append(doc.Events, command(humanPlayer, ms))
	}
	for i := 0; i < 10; i++ {
		doc.Events = append(doc.Events, command(idlePlayer, 5000+i*700))
	}
	for i := 0; i < 30; i++ {
		doc.Events = append(doc.Events, command(ghostPlayer, 9000+i*400))
	}
	doc.Events = append(doc.Events, replay.Event{GameTimeSeconds: 1, Type: "CHAT"})
	return doc
}

func writeDocument(t *testing.T, dir, name string, doc *replay.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type testStore struct {
	store  *store.Store
	writer *store.Writer
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "baseline.db")})
	require.NoError(t, err)
	w := store.NewWriter(s, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Serve(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		s.Close()
	})
	return &testStore{store: s, writer: w}
}

func playerByUser(t *testing.T, res *GameResult, userID int64) PlayerResult {
	t.Helper()
	for _, p := range res.Players {
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("user %d not in result", userID)
	return PlayerResult{}
}

func TestAnalyzeDocument_DryRun(t *testing.T) {
	a := New(nil, nil, Options{})
	assert.True(t, a.DryRun())

	res, err := a.AnalyzeDocument(context.Background(), testDocument("g-dry"), "g-dry.json", nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "g-dry", res.GameID)
	assert.Equal(t, "Supreme Isthmus", res.MapName)
	assert.Equal(t, int64(600000), res.DurationMs)

	// idle is below the action minimum and the ghost has no roster entry.
	require.Len(t, res.Players, 2)

	bot := playerByUser(t, res, botUser)
	assert.Equal(t, "metronome", bot.Name)
	assert.Equal(t, "[30.0]", bot.Skill)
	assert.Equal(t, 5, bot.Rank)
	assert.Equal(t, 150, bot.Stats.DominantIntervalMs)
	assert.Equal(t, 125, bot.Score)
	assert.Equal(t, forensics.VerdictInvestigate, bot.Verdict)
	assert.Equal(t, map[string]int{"MOVE": 100}, bot.CommandCounts)

	human := playerByUser(t, res, humanUser)
	assert.Equal(t, 40, human.Stats.TotalActions)
	assert.Empty(t, human.Flags)
	assert.Equal(t, 0, human.Score)

	flagged := res.Flagged()
	require.Len(t, flagged, 1)
	assert.Equal(t, botUser, flagged[0].UserID)
}

func TestAnalyzeDocument_MissingGameID(t *testing.T) {
	a := New(nil, nil, Options{})
	_, err := a.AnalyzeDocument(context.Background(), testDocument(""), "x.json", nil)
	assert.ErrorIs(t, err, replay.ErrInvalidDocument)
}

func TestAnalyzeDocument_Verified(t *testing.T) {
	a := New(nil, nil, Options{VerifiedHumans: []int64{botUser}})
	res, err := a.AnalyzeDocument(context.Background(), testDocument("g-v"), "g-v.json", nil)
	require.NoError(t, err)

	bot := playerByUser(t, res, botUser)
	assert.True(t, bot.Verified)
	assert.Equal(t, 125, bot.Score)
	assert.False(t, playerByUser(t, res, humanUser).Verified)
}

func TestAnalyzeDocument_DuplicateUser(t *testing.T) {
	doc := testDocument("g-dup")
	doc.Players[1].UserID = botUser

	a := New(nil, nil, Options{})
	res, err := a.AnalyzeDocument(context.Background(), doc, "g-dup.json", nil)
	require.NoError(t, err)
	require.Len(t, res.Players, 1)
	assert.Equal(t, botPlayer, res.Players[0].PlayerID)
}

func TestAnalyzeDocument_StoresAndSkips(t *testing.T) {
	ts := newTestStore(t)
	ctx := context.Background()
	a := New(ts.store, ts.writer, Options{ExcludeSelf: true})

	res, err := a.AnalyzeDocument(ctx, testDocument("g-1"), "g-1.json", nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	counts, err := ts.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Games)
	assert.Equal(t, 2, counts.GamePlayers)
	assert.Equal(t, 2, counts.Flags)

	again, err := a.AnalyzeDocument(ctx, testDocument("g-1"), "g-1.json", nil)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Empty(t, again.Players)

	after, err := ts.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, counts, after)

	bot, err := ts.store.GetPlayer(ctx, botUser)
	require.NoError(t, err)
	require.NotNil(t, bot)
	assert.Equal(t, 1, bot.TotalGames)
	assert.InDelta(t, 125.0, bot.AvgSuspicionScore, 1e-9)
}

func TestAnalyzeDocument_Force(t *testing.T) {
	ts := newTestStore(t)
	ctx := context.Background()

	_, err := New(ts.store, ts.writer, Options{}).AnalyzeDocument(ctx, testDocument("g-1"), "g-1.json", nil)
	require.NoError(t, err)

	forced := New(ts.store, ts.writer, Options{Force: true})
	res, err := forced.AnalyzeDocument(ctx, testDocument("g-1"), "g-1.json", nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	counts, err := ts.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Games)
	assert.Equal(t, 2, counts.GamePlayers)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDocument(t, dir, "game.json", testDocument("g-file"))

	a := New(nil, nil, Options{})
	res, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "game.json", res.Filename)
	assert.Len(t, res.Players, 2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"meta":{}}`), 0644))
	_, err = a.AnalyzeFile(context.Background(), filepath.Join(dir, "bad.json"))
	assert.ErrorIs(t, err, replay.ErrInvalidDocument)
}
