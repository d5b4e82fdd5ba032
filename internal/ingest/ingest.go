// Package ingest groups a decoded packet stream into per-player action logs.
package ingest

import (
	"sort"

	"barsentry/internal/replay"
)

// MinActions is the number of logged actions a player needs before any
// downstream analysis looks at them.
const MinActions = 20

// unknownCommand names commands the decoder could not resolve.
const unknownCommand = "UNKNOWN"

// ActionKind distinguishes the two action types that feed the detectors.
type ActionKind int

const (
	// ActionCommand is an issued unit command.
	ActionCommand ActionKind = iota + 1
	// ActionSelection is a unit selection change.
	ActionSelection
)

// String returns the lowercase kind name.
func (k ActionKind) String() string {
	switch k {
	case ActionCommand:
		return "command"
	case ActionSelection:
		return "select"
	default:
		return "unknown"
	}
}

// ActionEvent is one player action.
type ActionEvent struct {
	PlayerID          int
	TimestampMs       float64
	Kind              ActionKind
	CommandName       string
	SelectedUnitCount int
}

// ActionLog is one player's chronological actions within one game.
type ActionLog struct {
	PlayerID      int
	Actions       []ActionEvent
	Commands      int
	Selections    int
	CommandCounts map[string]int
}

func newActionLog(playerID int) *ActionLog {
	return &ActionLog{
		PlayerID:      playerID,
		CommandCounts: make(map[string]int),
	}
}

// Len returns the total number of logged actions.
func (l *ActionLog) Len() int {
	return len(l.Actions)
}

// Times returns the action timestamps in milliseconds.
func (l *ActionLog) Times() []float64 {
	times := make([]float64, len(l.Actions))
	for i, a := range l.Actions {
		times[i] = a.TimestampMs
	}
	return times
}

// SelectionEvents returns only the selection actions, in order.
func (l *ActionLog) SelectionEvents() []ActionEvent {
	selections := make([]ActionEvent, 0, l.Selections)
	for _, a := range l.Actions {
		if a.Kind == ActionSelection {
			selections = append(selections, a)
		}
	}
	return selections
}

func (l *ActionLog) append(e ActionEvent) {
	l.Actions = append(l.Actions, e)
	switch e.Kind {
	case ActionCommand:
		l.Commands++
		l.CommandCounts[e.CommandName]++
	case ActionSelection:
		l.Selections++
	}
}

// Group builds one ActionLog per player from the packet stream. Packets
// without a player, and packets that are neither commands nor selections,
// are dropped.
func Group(events []replay.Event) map[int]*ActionLog {
	logs := make(map[int]*ActionLog)

	for _, ev := range events {
		if ev.PlayerID == nil {
			continue
		}

		action := ActionEvent{
			PlayerID:    *ev.PlayerID,
			TimestampMs: ev.TimestampMs(),
		}
		switch ev.Type {
		case replay.EventCommand:
			action.Kind = ActionCommand
			action.CommandName = ev.Payload.CmdName
			if action.CommandName == "" {
				action.CommandName = unknownCommand
			}
		case replay.EventSelect:
			action.Kind = ActionSelection
			action.SelectedUnitCount = len(ev.Payload.SelectedUnitIDs)
		default:
			continue
		}

		log, ok := logs[action.PlayerID]
		if !ok {
			log = newActionLog(action.PlayerID)
			logs[action.PlayerID] = log
		}
		log.append(action)
	}

	// The decoder emits packets in order; a stable sort keeps equal
	// timestamps in arrival order if a document was merged out of order.
	for _, log := range logs {
		sort.SliceStable(log.Actions, func(i, j int) bool {
			return log.Actions[i].TimestampMs < log.Actions[j].TimestampMs
		})
	}

	return logs
}

// Qualifying returns the logs with at least minActions actions, ordered by
// player id.
func Qualifying(logs map[int]*ActionLog, minActions int) []*ActionLog {
	var out []*ActionLog
	for _, log := range logs {
		if log.Len() >= minActions {
			out = append(out, log)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}
