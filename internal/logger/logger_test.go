package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAlertCarriesFlag(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(INFO, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	prev := defaultLogger
	defaultLogger = l
	defer func() { defaultLogger = prev }()

	Alert("drift on %s", []zap.Field{zap.String("campaign_id", "c1")}, "c1")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["alert"] != true || line["level"] != "ERROR" || line["message"] != "drift on c1" {
		t.Fatalf("unexpected log line %v", line)
	}
}

type staticConfig struct{ level, output, file string }

func (c staticConfig) GetLevel() string  { return c.level }
func (c staticConfig) GetOutput() string { return c.output }
func (c staticConfig) GetFile() string   { return c.file }
func (c staticConfig) GetRotation() Rotation {
	return Rotation{}
}

func TestInitRejectsUnknownOutput(t *testing.T) {
	if err := Init(staticConfig{level: "info", output: "syslog"}); err == nil {
		t.Fatal("expected error for unknown output")
	}
	if err := Init(staticConfig{level: "info", output: "file"}); err == nil {
		t.Fatal("expected error for file output without path")
	}
}

func TestRotationDefaults(t *testing.T) {
	got := Rotation{MaxBackups: 7}.withDefaults()
	want := Rotation{MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 28}
	if got != want {
		t.Fatalf("rotation = %+v, want %+v", got, want)
	}
}
