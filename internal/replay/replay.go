// Package replay defines the decoded replay documents handed over by the
// external demo decoder and loads them from disk.
//
// The binary replay format is never parsed here. A document is the decoder's
// JSON output: game metadata, the player roster and the ordered packet stream.
package replay

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidDocument is returned when a document fails schema validation.
var ErrInvalidDocument = errors.New("invalid replay document")

// EventType is the decoder's packet name.
type EventType string

const (
	// EventCommand is a unit command issued by a player.
	EventCommand EventType = "COMMAND"
	// EventSelect is a unit selection change.
	EventSelect EventType = "SELECT"
)

// Document is one decoded replay.
type Document struct {
	Meta    GameMeta     `json:"meta"`
	Players []PlayerInfo `json:"players"`
	Events  []Event      `json:"events"`
}

// GameMeta is the game-level metadata block.
type GameMeta struct {
	GameID        string `json:"gameId"`
	Map           string `json:"map"`
	DurationMs    int64  `json:"durationMs"`
	StartTime     string `json:"startTime"`
	EngineVersion string `json:"engineVersion"`
}

// PlayerInfo is one roster entry.
type PlayerInfo struct {
	PlayerID   int    `json:"playerId"`
	UserID     int64  `json:"userId"`
	Name       string `json:"name"`
	TeamID     int    `json:"teamId"`
	AllyTeamID int    `json:"allyTeamId"`
	Skill      string `json:"skill"`
	Rank       int    `json:"rank"`
}

// Event is one decoded packet. PlayerID is nil for packets that do not
// belong to a player (chat from the host, game-state packets).
type Event struct {
	PlayerID        *int      `json:"playerId,omitempty"`
	GameTimeSeconds float64   `json:"gameTimeSeconds"`
	Type            EventType `json:"eventType"`
	Payload         Payload   `json:"payload"`
}

// Payload carries the fields of COMMAND and SELECT packets.
type Payload struct {
	CmdName         string  `json:"cmdName,omitempty"`
	SelectedUnitIDs []int64 `json:"selectedUnitIds,omitempty"`
}

// TimestampMs returns the packet's game time in milliseconds.
func (e Event) TimestampMs() float64 {
	return e.GameTimeSeconds * 1000
}

// Roster indexes the player list by in-game player number.
func (d *Document) Roster() map[int]PlayerInfo {
	roster := make(map[int]PlayerInfo, len(d.Players))
	for _, p := range d.Players {
		roster[p.PlayerID] = p
	}
	return roster
}

//go:embed schema/replay.schema.json
var schemaJSON []byte

const schemaURL = "https://barsentry.local/schema/replay-v1.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

func documentSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// Decode validates raw document bytes against the replay schema and decodes them.
func Decode(data []byte) (*Document, error) {
	schema, err := documentSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// IsDocument reports whether path has one of the accepted extensions.
func IsDocument(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
