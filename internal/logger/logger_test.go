package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		env      string
		level    string
		want     zapcore.Level
		encoding string
		wantErr  bool
	}{
		{env: "prod", want: zapcore.InfoLevel, encoding: "json"},
		{env: "local", want: zapcore.DebugLevel, encoding: "console"},
		{env: "dev", level: "warn", want: zapcore.WarnLevel, encoding: "console"},
		{env: "docker", level: "ERROR", want: zapcore.ErrorLevel, encoding: "console"},
		{env: "staging", wantErr: true},
		{env: "prod", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			cfg, err := newConfig(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cfg.Level.Level(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
			if cfg.Encoding != tt.encoding {
				t.Errorf("encoding = %q, want %q", cfg.Encoding, tt.encoding)
			}
			if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
				t.Errorf("output paths = %v, want stderr", cfg.OutputPaths)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("prod logger should not log debug")
	}
	if _, err := NewLogger("nowhere"); err == nil {
		t.Error("expected error for unknown env")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}
	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected stored logger")
	}
}
