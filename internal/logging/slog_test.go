package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_LevelsWriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "poll", "job_id", "j1")
	log.Info(ctx, "tick finished", "entries", 3)
	log.Warn(ctx, "scheduler already running")
	log.Error(ctx, "submit failed", "entry_id", "e1")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=poll", "job_id=j1",
		"level=INFO", `msg="tick finished"`, "entries=3",
		"level=WARN", `msg="scheduler already running"`,
		"level=ERROR", `msg="submit failed"`, "entry_id=e1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLogger_WithAddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("stage", "transcription")
	child.Info(context.Background(), "reconcile", "jobs", 2)

	out := buf.String()
	for _, want := range []string{"stage=transcription", "msg=reconcile", "jobs=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
