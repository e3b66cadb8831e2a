package pipeline

import (
	"io"
	"log/slog"
	"testing"

	"github.com/geraldbahati/unbowed/internal/config"
	"github.com/geraldbahati/unbowed/internal/parser"
)

func TestOptionsFromConfig(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts, err := OptionsFromConfig(config.Config{SpreadsheetMode: "CSV", ForceGoPDF: true, TokenEncoding: "none"}, nil, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Parser.SheetMode != parser.SheetCSV || !opts.Parser.ForceGoPDF {
		t.Errorf("parser options = %+v", opts.Parser)
	}
	if opts.Tokenizer != nil {
		t.Error("expected tokenizer to be disabled")
	}

	if _, err := OptionsFromConfig(config.Config{SpreadsheetMode: "xml"}, nil, log); err == nil {
		t.Error("expected error for unknown spreadsheet mode")
	}
}
