package logging

import (
	"testing"

	"github.com/axju/metrico/internal/config"
)

func TestNew(t *testing.T) {
	cases := []struct {
		level  string
		format string
		ok     bool
	}{
		{"info", "json", true},
		{"debug", "text", true},
		{"warn", "json", true},
		{"info", "xml", false},
		{"verbose", "json", false},
	}
	for _, c := range cases {
		_, err := New(config.LoggingConfig{Level: c.level, Format: c.format})
		if c.ok && err != nil {
			t.Errorf("New(%s, %s): unexpected error %v", c.level, c.format, err)
		}
		if !c.ok && err == nil {
			t.Errorf("New(%s, %s): expected error", c.level, c.format)
		}
	}
}
