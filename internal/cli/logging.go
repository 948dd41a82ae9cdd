package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// newLogger builds the process logger from log_level and log_format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, types.Errorf(types.ErrValidation, "configure logging", "unknown log_level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, types.Errorf(types.ErrValidation, "configure logging", "unknown log_format %q", format)
	}
}
