package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barsentry/internal/replay"
)

func intPtr(v int) *int { return &v }

func command(player int, sec float64, name string) replay.Event {
	return replay.Event{
		PlayerID:        intPtr(player),
		GameTimeSeconds: sec,
		Type:            replay.EventCommand,
		Payload:         replay.Payload{CmdName: name},
	}
}

func selection(player int, sec float64, units int) replay.Event {
	ids := make([]int64, units)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return replay.Event{
		PlayerID:        intPtr(player),
		GameTimeSeconds: sec,
		Type:            replay.EventSelect,
		Payload:         replay.Payload{SelectedUnitIDs: ids},
	}
}

func TestGroup(t *testing.T) {
	events := []replay.Event{
		command(0, 1.0, "MOVE"),
		selection(0, 1.1, 12),
		command(1, 1.2, ""),
		{GameTimeSeconds: 1.3, Type: replay.EventCommand},
		{PlayerID: intPtr(0), GameTimeSeconds: 1.4, Type: "CHAT"},
		command(0, 1.5, "MOVE"),
		command(0, 1.6, "ATTACK"),
	}

	logs := Group(events)
	require.Len(t, logs, 2)

	p0 := logs[0]
	assert.Equal(t, 4, p0.Len())
	assert.Equal(t, 3, p0.Commands)
	assert.Equal(t, 1, p0.Selections)
	assert.Equal(t, map[string]int{"MOVE": 2, "ATTACK": 1}, p0.CommandCounts)
	assert.Equal(t, []float64{1000, 1100, 1500, 1600}, p0.Times())

	sel := p0.SelectionEvents()
	require.Len(t, sel, 1)
	assert.Equal(t, 12, sel[0].SelectedUnitCount)
	assert.Equal(t, ActionSelection, sel[0].Kind)

	p1 := logs[1]
	assert.Equal(t, 1, p1.Len())
	assert.Equal(t, map[string]int{unknownCommand: 1}, p1.CommandCounts)
}

func TestGroup_SortsOutOfOrderPackets(t *testing.T) {
	events := []replay.Event{
		command(3, 2.0, "A"),
		command(3, 1.0, "B"),
		command(3, 1.0, "C"),
	}

	log := Group(events)[3]
	require.NotNil(t, log)
	assert.Equal(t, []float64{1000, 1000, 2000}, log.Times())
	assert.Equal(t, "B", log.Actions[0].CommandName)
	assert.Equal(t, "C", log.Actions[1].CommandName)
}

func TestQualifying(t *testing.T) {
	var events []replay.Event
	for i := 0; i < MinActions; i++ {
		events = append(events, command(5, float64(i), "MOVE"))
		events = append(events, command(2, float64(i), "MOVE"))
	}
	for i := 0; i < MinActions-1; i++ {
		events = append(events, command(9, float64(i), "MOVE"))
	}

	got := Qualifying(Group(events), MinActions)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].PlayerID)
	assert.Equal(t, 5, got[1].PlayerID)
}

func TestActionKindString(t *testing.T) {
	assert.Equal(t, "command", ActionCommand.String())
	assert.Equal(t, "select", ActionSelection.String())
	assert.Equal(t, "unknown", ActionKind(0).String())
}
