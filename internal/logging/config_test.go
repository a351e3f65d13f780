package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
		"warning": zerolog.WarnLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("unexpected level for %q: %v ok=%v", raw, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("unrecognized level accepted")
	}
}

func TestEnvOverridesProfileDefaults(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "true")
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || !cfg.Timestamp {
		t.Fatalf("unexpected cfg=%+v", cfg)
	}
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	Apply(Config{Level: zerolog.DebugLevel, NoColor: true, Out: &buf})
	l := Component("engine")
	l.Info().Msg("hello")
	if !strings.Contains(buf.String(), "component=engine") {
		t.Fatalf("unexpected output=%q", buf.String())
	}
}
