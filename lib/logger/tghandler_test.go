package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type recorder struct {
	texts []string
}

func (r *recorder) NotifyAdmins(text string) {
	r.texts = append(r.texts, text)
}

func TestTelegramHandler(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(NewTelegramHandler(base, rec, slog.LevelError))

	log.Info("started")
	log.Warn("slow gateway")
	log.With(slog.String("mod", "core")).WithGroup("sweep").Error("evict member", slog.Int64("user_id", 42))

	if !strings.Contains(buf.String(), "started") || !strings.Contains(buf.String(), "evict member") {
		t.Errorf("records not passed on: %s", buf.String())
	}
	if len(rec.texts) != 1 {
		t.Fatalf("notifications = %q", rec.texts)
	}
	text := rec.texts[0]
	for _, want := range []string{"ERROR sweep.evict member", "mod: core", "user_id: 42"} {
		if !strings.Contains(text, want) {
			t.Errorf("notification misses %q: %q", want, text)
		}
	}
}

func TestTelegramHandlerWithoutNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTelegramHandler(slog.NewTextHandler(&buf, nil), nil, slog.LevelError))
	log.Error("no admins")
	if !strings.Contains(buf.String(), "no admins") {
		t.Error("record lost")
	}
}
