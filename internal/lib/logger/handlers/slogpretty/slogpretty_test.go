package slogpretty_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"prompt_gallery/internal/lib/logger/handlers/slogpretty"
	"prompt_gallery/internal/lib/logger/sl"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo},
	}
	log := slog.New(opts.NewPrettyHandler(&buf))

	log.With(slog.String("op", "gallery.MergeStreamed")).
		Error("failed to list store", sl.Err(errors.New("disk gone")))

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "failed to list store")
	assert.Contains(t, out, `"op": "gallery.MergeStreamed"`)
	assert.Contains(t, out, `"error": "disk gone"`)
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo},
	}
	log := slog.New(opts.NewPrettyHandler(&buf))

	log.Debug("hidden")

	assert.Empty(t, buf.String())
}
