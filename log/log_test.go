package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLevel(t *testing.T) {
	testCases := []struct {
		desc  string
		level int
		debug bool
		info  bool
		err   bool
	}{
		{desc: "debug level", level: DebugLevel, debug: true, info: true, err: true},
		{desc: "info level", level: InfoLevel, info: true, err: true},
		{desc: "error level", level: ErrorLevel, err: true},
		{desc: "disabled", level: Disabled},
		{desc: "out of range falls back to info", level: 7, info: true, err: true},
	}
	defer SetLevel(InfoLevel)
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			SetLevel(tC.level)
			if Enabled(DebugLevel) != tC.debug {
				t.Errorf("debug enabled = %v, want %v", Enabled(DebugLevel), tC.debug)
			}
			if Enabled(InfoLevel) != tC.info {
				t.Errorf("info enabled = %v, want %v", Enabled(InfoLevel), tC.info)
			}
			if Enabled(ErrorLevel) != tC.err {
				t.Errorf("error enabled = %v, want %v", Enabled(ErrorLevel), tC.err)
			}
		})
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	Infof("prepared %d statements", 3)
	Error("boom")
	Debug("hidden")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "prepared 3 statements" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("unexpected level %v", entries[1].Level)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]int{"debug": DebugLevel, "": InfoLevel, "error": ErrorLevel, "off": Disabled} {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %d, %v", in, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("ParseLevel accepted an unknown level")
	}
}
