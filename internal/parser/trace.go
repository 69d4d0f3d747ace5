package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/imishinist/wmg-cli/internal/models"
)

var errNotObject = errors.New("record is not a JSON object")

// DecodeTrace reads newline-delimited JSON, one episode per line.
// Blank lines are skipped; episode order is line order.
func DecodeTrace(reader io.Reader) ([]models.Episode, error) {
	episodes := make([]models.Episode, 0)
	br := bufio.NewReader(reader)

	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("failed to read trace: %w", readErr)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			episode, err := decodeEpisode(trimmed)
			if err != nil {
				return nil, &MalformedTraceError{Line: lineNo, Err: err}
			}
			episodes = append(episodes, episode)
		}

		if readErr == io.EOF {
			return episodes, nil
		}
	}
}

// ParseTrace is DecodeTrace over an in-memory payload.
func ParseTrace(data []byte) ([]models.Episode, error) {
	return DecodeTrace(bytes.NewReader(data))
}

func decodeEpisode(line []byte) (models.Episode, error) {
	var episode models.Episode

	// json.Unmarshal accepts null into a struct, so check the shape first.
	if line[0] != '{' {
		return episode, errNotObject
	}
	if err := json.Unmarshal(line, &episode); err != nil {
		return episode, err
	}

	return episode, nil
}

// EncodeTrace writes episodes as newline-delimited JSON.
func EncodeTrace(writer io.Writer, episodes []models.Episode) error {
	bw := bufio.NewWriter(writer)
	encoder := json.NewEncoder(bw)
	encoder.SetEscapeHTML(false)

	for i, episode := range episodes {
		if err := encoder.Encode(episode); err != nil {
			return fmt.Errorf("failed to encode episode %d: %w", i+1, err)
		}
	}

	return bw.Flush()
}
