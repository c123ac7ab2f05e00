package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestEventWritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf)

	l.Event(LevelInfo, "url_scraped", "url", "https://www.athome.lu/en/buy", "listing_count", 12, "skipped", nil)

	out := buf.String()
	for _, want := range []string{"INFO", "url_scraped", `"url": "https://www.athome.lu/en/buy"`, `"listing_count": 12`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("nil field was written: %q", out)
	}
}

func TestSetDebugSilencesDebugEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf)
	l.SetDebug(false)

	l.Event(LevelDebug, "page_closed")
	l.Debug("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug output with debug off: %q", buf.String())
	}

	l.Event(LevelWarn, "slow_domain", "domain", "immotop.lu")
	if !strings.Contains(buf.String(), "slow_domain") {
		t.Errorf("warn event missing: %q", buf.String())
	}
}
