package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/topical/pkg/domain"
)

var (
	// DefaultMaxInputSize bounds a single inbound message, in bytes.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "TOPICAL_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("message is larger than the input limit")
	ErrInvalidUTF8   = errors.New("message is not valid UTF-8")
)

// MaxInputSize returns the effective input limit.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}

// SanitizeInput rejects oversized or malformed messages and strips control
// characters other than newline, tab and carriage return. Oversized input is
// rejected, never truncated, so topics only see what the user sent.
func SanitizeInput(input string) (string, error) {
	if limit := MaxInputSize(); len(input) > limit {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, isUnsafeControl) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// EventInput is the wire form of an inbound event, shared by the transports.
type EventInput struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type,omitempty"`
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Event sanitizes the text and builds the domain event. An empty Type means
// a plain message.
func (in EventInput) Event() (domain.Event, error) {
	text, err := SanitizeInput(in.Text)
	if err != nil {
		return domain.Event{}, err
	}
	event := domain.NewMessage(text)
	event.ID = in.ID
	event.Payload = in.Payload
	if in.Type != "" {
		event.Type = domain.EventType(in.Type)
	}
	return event, nil
}

// DecodeEvent reads an event body: a JSON object in the EventInput shape, or
// anything else as plain message text.
func DecodeEvent(data []byte) (domain.Event, error) {
	var in EventInput
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &in); err != nil {
			return domain.Event{}, fmt.Errorf("can't parse event: %w", err)
		}
	} else {
		in.Text = trimmed
	}
	return in.Event()
}
