package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"INFO", bolt.INFO},
		{"warning", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().
		Add(RequestID("abc")).
		Add(State("loading")).
		Add(Rows(4)).
		Add(Charts(3)).
		Add(Duration(1500 * time.Millisecond)).
		Add(ErrorField(errors.New("boom"))).
		Msg("submitted")

	for _, want := range []string{
		`"request_id":"abc"`,
		`"state":"loading"`,
		`"rows":4`,
		`"charts":3`,
		`"duration_ms":1500`,
		`"error":"boom"`,
	} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("missing %s in %s", want, buf.String())
		}
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("hidden")
	Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %s", buf.String())
	}
	Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
}

func TestErrorFieldNil(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json", Output: &buf})
	ErrorField(nil)(logger.Info()).Msg("ok")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error should not add a field: %s", buf.String())
	}
}
