package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"promai/pkg/types"
)

// decodeConversation parses a stored record token by token. The returned
// conversation always holds every field and turn read before the first
// defect; err is nil only when the whole document is well formed.
func decodeConversation(r io.Reader) (*types.Conversation, error) {
	conv := &types.Conversation{}
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return conv, errors.New("record is empty")
		}
		return conv, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return conv, fmt.Errorf("record does not start with an object: %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return conv, err
		}
		key, ok := tok.(string)
		if !ok {
			return conv, fmt.Errorf("unexpected token %v", tok)
		}
		switch key {
		case "id":
			err = dec.Decode(&conv.ID)
		case "title":
			err = dec.Decode(&conv.Title)
		case "created_at":
			err = dec.Decode(&conv.CreatedAt)
		case "updated_at":
			err = dec.Decode(&conv.UpdatedAt)
		case "turns":
			err = decodeTurns(dec, conv)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return conv, fmt.Errorf("field %q: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return conv, fmt.Errorf("record not closed: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return conv, errors.New("trailing data after record")
	}
	return conv, nil
}

// decodeTurns appends turns until the array closes or a turn is malformed.
func decodeTurns(dec *json.Decoder, conv *types.Conversation) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("turns is not an array: %v", tok)
	}
	for dec.More() {
		var t types.Turn
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("turn %d: %w", len(conv.Turns), err)
		}
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: unknown role %q", len(conv.Turns), t.Role)
		}
		conv.Turns = append(conv.Turns, t)
	}
	_, err = dec.Token()
	return err
}
