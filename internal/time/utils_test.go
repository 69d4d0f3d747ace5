package timeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "rfc3339 with zone",
			input: "2024-05-01T12:30:00+02:00",
			want:  time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "naive with microseconds",
			input: "2024-05-01T12:30:00.123456",
			want:  time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC),
		},
		{
			name:  "naive with space separator",
			input: "2024-05-01 12:30:00",
			want:  time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only",
			input: "2024-05-01",
			want:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)

	_, err = ParseTimestamp("  ")
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))

	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("JST", 9*3600))
	assert.Equal(t, "2024-05-01T03:30:00Z", FormatTimestamp(ts))
}

func TestFromUnixMilli(t *testing.T) {
	assert.True(t, FromUnixMilli(0).IsZero())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), FromUnixMilli(1714521600000))
}
