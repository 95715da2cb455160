package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/obsidianstack/insightchannel/agent/internal/envelope"
)

// maxLine bounds a single NDJSON line.
const maxLine = 1 << 20

// Result counts what Read consumed.
type Result struct {
	Lines     int
	Items     int
	Malformed int
}

// Open returns the named file, or stdin for "-".
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open: %w", err)
	}
	return f, nil
}

// Read decodes items from r and passes each to fn until EOF or ctx is done.
func Read(ctx context.Context, r io.Reader, logger *slog.Logger, fn func(envelope.Item)) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Lines++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var it envelope.Item
		if err := json.Unmarshal(line, &it); err != nil {
			res.Malformed++
			logger.Warn("feed: skipping malformed line", "line", res.Lines, "err", err)
			continue
		}
		res.Items++
		fn(it)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("feed: read: %w", err)
	}
	return res, nil
}
