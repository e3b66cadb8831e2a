package parser

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
)

// LegacyParser converts binary Office formats (.doc, .ppt) by running an
// external converter that prints plain text to stdout.
type LegacyParser struct {
	Command string
	Args    []string // Placed before the file path
}

func (p *LegacyParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	out, err := convert(r, p.Command, p.Args)
	if err != nil {
		return nil, err
	}
	text := &document.Text{}
	text.Append(strings.ToValidUTF8(string(out), ""))
	return text, nil
}

// convert spools r to disk and returns the converter's stdout.
func convert(r io.Reader, command string, args []string) ([]byte, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("converter %s not available: %w", command, err)
	}

	path, _, cleanup, err := spool(r, "unbowed-legacy-*")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var stderr bytes.Buffer
	cmd := exec.Command(command, append(append([]string{}, args...), path)...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return out, nil
}
