package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	timeutils "github.com/imishinist/wmg-cli/internal/time"
)

// Timestamp is a time.Time that also accepts the zone-less datetimes the
// benchmark API returns, and always marshals as RFC3339 in UTC.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(timeutils.FormatTimestamp(t.Time))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := timeutils.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	return timeutils.FormatTimestamp(t.Time), nil
}

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := timeutils.ParseTimestamp(value.Value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
