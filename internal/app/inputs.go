package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number is an optional numeric field that accepts a JSON number, a numeric
// string, or an explicit empty string. The empty string decodes to zero, so
// "set to zero" stays distinguishable from "field omitted" (a nil *Number).
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = 0
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		if raw == "" {
			*n = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q", raw)
		}
		*n = Number(parsed)
		return nil
	}
	var parsed float64
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	*n = Number(parsed)
	return nil
}

// NullString is an optional field that distinguishes three states: absent
// (Set false), explicitly null (Set true, Valid false), and a value.
type NullString struct {
	Set   bool
	Valid bool
	Value string
}

func (s *NullString) UnmarshalJSON(data []byte) error {
	s.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		s.Valid = false
		s.Value = ""
		return nil
	}
	if err := json.Unmarshal(data, &s.Value); err != nil {
		return err
	}
	s.Valid = true
	return nil
}

// Pointer returns the value for assignment onto a nullable model field.
func (s NullString) Pointer() *string {
	if !s.Valid {
		return nil
	}
	value := s.Value
	return &value
}

// DocumentUpdateInput is a batch of optional field assignments plus the
// publish/done lifecycle flags. Absent fields leave the document untouched;
// this is a partial update, not a full replace.
type DocumentUpdateInput struct {
	Title           *string    `json:"title"`
	Icon            NullString `json:"icon"`
	Color           NullString `json:"color"`
	CoverImg        *string    `json:"coverImg"`
	CoverImgPosX    *Number    `json:"coverImgPositionX"`
	CoverImgPosY    *Number    `json:"coverImgPositionY"`
	Text            *string    `json:"text"`
	Append          bool       `json:"append"`
	EditorVersion   string     `json:"editorVersion"`
	TemplateID      string     `json:"templateId"`
	FullWidth       *bool      `json:"fullWidth"`
	InsightsEnabled *bool      `json:"insightsEnabled"`
	Publish         bool       `json:"publish"`
	Done            bool       `json:"done"`
	CollectionID    *string    `json:"collectionId"`
}

// CommentUpdateInput carries either a content edit, a resolve/reopen request,
// or both (content with a reopen directive).
type CommentUpdateInput struct {
	Data     json.RawMessage `json:"data"`
	Resolved bool            `json:"resolved"`
}
