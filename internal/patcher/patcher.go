package patcher

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aresml/arescfg/internal/storage"
)

// Result describes one patch run.
type Result struct {
	Script       string `json:"script"`
	Lines        int    `json:"lines"`
	LinesChanged int    `json:"lines_changed"`
}

type Patcher struct {
	rewriter LineRewriter
	logger   *slog.Logger
}

// New creates a patcher. A nil rewriter means the default prefix table.
func New(rewriter LineRewriter, logger *slog.Logger) *Patcher {
	if rewriter == nil {
		rewriter = NewPrefixRewriter()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Patcher{rewriter: rewriter, logger: logger.With("component", "patcher")}
}

// Patch rewrites path in place. Every line keeps its own terminator, and the
// whole file is written back even when nothing changed.
func (p *Patcher) Patch(h storage.Hyperparameters, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	out, result := p.Rewrite(data, &h)
	result.Script = path

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat script: %w", err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}

	p.logger.Info("script patched", "script", path, "lines_changed", result.LinesChanged)
	return result, nil
}

// Rewrite applies the rewriter to every line of src.
func (p *Patcher) Rewrite(src []byte, h *storage.Hyperparameters) ([]byte, *Result) {
	result := &Result{}
	var out bytes.Buffer
	out.Grow(len(src))

	for len(src) > 0 {
		line, term := src, []byte(nil)
		if i := bytes.IndexByte(src, '\n'); i >= 0 {
			line, term = src[:i], src[i:i+1]
			if i > 0 && src[i-1] == '\r' {
				line, term = src[:i-1], src[i-1:i+1]
			}
			src = src[i+1:]
		} else {
			src = nil
		}
		result.Lines++

		if replaced, ok := p.rewriter.Rewrite(string(line), h); ok {
			if replaced != string(line) {
				result.LinesChanged++
			}
			out.WriteString(replaced)
		} else {
			out.Write(line)
		}
		out.Write(term)
	}
	return out.Bytes(), result
}
