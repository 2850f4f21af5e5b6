package lesson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which representation a raw turn arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeExplicit is {"speaker": "...", "text": "..."}.
	ShapeExplicit
	// ShapeKeyed is {"<speaker>": "<text>"}.
	ShapeKeyed
)

func (s Shape) String() string {
	switch s {
	case ShapeExplicit:
		return "explicit"
	case ShapeKeyed:
		return "keyed"
	default:
		return "unknown"
	}
}

// reserved keys never name a speaker.
var reservedKeys = map[string]struct{}{
	"conversation_id": {},
	"turn_id":         {},
}

// RawTurn is a conversation entry as produced by the language model, before
// ids are assigned.
type RawTurn struct {
	Shape   Shape
	Speaker string
	Text    string
}

// UnmarshalJSON decodes either supported turn shape. Object key order is
// preserved so the first speaker key of a keyed turn wins.
func (r *RawTurn) UnmarshalJSON(data []byte) error {
	*r = RawTurn{}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		// Non-object entries carry nothing usable.
		return nil
	}

	var (
		speaker, text string
		hasText       bool
		firstKey      string
		firstValue    string
		keyed         bool
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode turn field %q: %w", key, err)
		}
		switch key {
		case "text":
			hasText = true
			text = stringValue(value)
		case "speaker":
			speaker = stringValue(value)
		}
		if _, reserved := reservedKeys[key]; !reserved && !keyed {
			keyed = true
			firstKey = key
			firstValue = stringValue(value)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	switch {
	case hasText:
		r.Shape = ShapeExplicit
		r.Text = text
		r.Speaker = speaker
		if r.Speaker == "" {
			r.Speaker = UnknownSpeaker
		}
	case keyed:
		r.Shape = ShapeKeyed
		r.Speaker = firstKey
		r.Text = firstValue
	}
	return nil
}

// stringValue returns the JSON string in raw, or "" for any other type.
func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Normalize converts raw turns into canonical turns numbered from 1. Turns
// without text keep their id so later stages can report them.
func Normalize(raw []RawTurn) []Turn {
	turns := make([]Turn, 0, len(raw))
	for i, r := range raw {
		speaker := r.Speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		turns = append(turns, Turn{ID: i + 1, Speaker: speaker, Text: r.Text})
	}
	return turns
}
