package pipeline

import (
	"log/slog"
	"strings"

	"github.com/geraldbahati/unbowed/internal/chunker"
	"github.com/geraldbahati/unbowed/internal/config"
	"github.com/geraldbahati/unbowed/internal/parser"
	"github.com/geraldbahati/unbowed/internal/stats"
)

// TokenizerDisabled turns token counting off when used as TOKEN_ENCODING.
const TokenizerDisabled = "none"

// OptionsFromConfig builds ReaderOptions from service configuration. A
// tokenizer that fails to load is logged and replaced by character counting.
func OptionsFromConfig(cfg config.Config, rec *stats.Recorder, log *slog.Logger) (ReaderOptions, error) {
	mode, err := parser.ParseSheetMode(cfg.SpreadsheetMode)
	if err != nil {
		return ReaderOptions{}, err
	}
	opts := ReaderOptions{
		Parser: parser.Options{
			ForceGoPDF: cfg.ForceGoPDF,
			SheetMode:  mode,
		},
		TimetableTitle: cfg.TimetableTitle,
		Stats:          rec,
	}

	if strings.EqualFold(cfg.TokenEncoding, TokenizerDisabled) {
		return opts, nil
	}
	tok, err := chunker.NewTiktokenTokenizer(cfg.TokenEncoding)
	if err != nil {
		log.Warn("tokenizer unavailable, counting characters", "encoding", cfg.TokenEncoding, "error", err)
		return opts, nil
	}
	opts.Tokenizer = tok
	return opts, nil
}
