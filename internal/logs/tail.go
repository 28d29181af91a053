package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1 << 20
	pollInterval = 250 * time.Millisecond
)

// Query selects lines from a log file.
type Query struct {
	// Offset is the byte position to resume from. Negative means "the last
	// Limit lines".
	Offset int64
	Limit  int
	// Match keeps only lines containing the substring, e.g. `site_id=3`.
	Match string
	// Wait blocks up to this long for new lines when none are available.
	Wait time.Duration
}

// Page is one batch of lines.
type Page struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Read returns lines per q. A missing file is an empty page at offset 0.
func Read(ctx context.Context, path string, q Query) (Page, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Page{Lines: []string{}}, nil
	}
	if err != nil {
		return Page{Offset: q.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Page{Offset: q.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var page Page
	if q.Offset < 0 {
		page, err = readLast(path, q.Limit, q.Match)
	} else {
		// A file shorter than the offset was rotated or truncated.
		offset := q.Offset
		if offset > info.Size() {
			offset = 0
		}
		page, err = readFrom(path, offset, q.Match)
	}
	if err != nil || len(page.Lines) > 0 || q.Wait <= 0 {
		return page, err
	}
	return waitFor(ctx, path, page.Offset, q)
}

func readLast(path string, limit int, match string) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Page{}, fmt.Errorf("seek log file: %w", err)
		}
		return Page{Lines: []string{}, Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	end, err := scan(file, match, func(line string) {
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Lines: ring, Offset: end}, nil
}

func readFrom(path string, offset int64, match string) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	lines := []string{}
	end, err := scan(file, match, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Page{Offset: offset}, err
	}
	return Page{Lines: lines, Offset: end}, nil
}

// scan feeds matching lines to emit and returns the file position afterwards.
func scan(file *os.File, match string, emit func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if match == "" || strings.Contains(line, match) {
			emit(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return pos, nil
}

func waitFor(ctx context.Context, path string, offset int64, q Query) (Page, error) {
	deadline := time.Now().Add(q.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	page := Page{Lines: []string{}, Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return page, ctx.Err()
		case <-ticker.C:
		}
		next, err := readFrom(path, page.Offset, q.Match)
		if err != nil {
			return page, err
		}
		page = next
		if len(page.Lines) > 0 || time.Now().After(deadline) {
			return page, nil
		}
	}
}
