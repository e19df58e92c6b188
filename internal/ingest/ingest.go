// Package ingest acquires the raw incident table. The source is fetched in
// one scoped acquisition (open, read fully, close), parsed as CSV, checked
// against the declared schema, and materialized as typed series with empty
// cells recorded as nulls. There are no retries: any failure aborts the run.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
)

const defaultTimeout = 5 * time.Minute

// Client acquires and parses the source table.
type Client struct {
	cfg    *config.Config
	http   *http.Client
	mem    memory.Allocator
	logger *zap.Logger
}

// New creates a client for the given configuration.
func New(cfg *config.Config, logger *zap.Logger, mem memory.Allocator) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultTimeout},
		mem:    mem,
		logger: logger,
	}
}

// Acquire reads the source table from the configured file when set,
// otherwise from the configured URL.
func (c *Client) Acquire(ctx context.Context) (*frame.Frame, error) {
	if c.cfg.SourceFile != "" {
		return c.ReadFile(c.cfg.SourceFile)
	}
	return c.Fetch(ctx)
}

// Fetch downloads the source CSV over HTTPS and parses it.
func (c *Client) Fetch(ctx context.Context) (*frame.Frame, error) {
	const op = "ingest.Fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SourceURL, nil)
	if err != nil {
		return nil, errs.NewFetch(op, "building request", err)
	}

	c.logger.Info("fetching source table", zap.String("url", c.cfg.SourceURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewFetch(op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewFetch(op, fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	return c.Read(resp.Body)
}

// ReadFile parses a local copy of the source CSV.
func (c *Client) ReadFile(path string) (*frame.Frame, error) {
	const op = "ingest.ReadFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NewFetch(op, "opening source file", err)
	}
	defer f.Close()

	c.logger.Info("reading source table", zap.String("path", path))
	return c.Read(f)
}

// Read parses CSV content into a typed frame. The header must contain every
// declared column; undeclared columns are ignored (the published dataset
// gains columns over time).
func (c *Client) Read(r io.Reader) (*frame.Frame, error) {
	const op = "ingest.Read"

	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, errs.NewFetch(op, "parsing CSV", err)
	}
	if len(records) == 0 {
		return nil, errs.NewFetch(op, "source contains no header row", nil)
	}

	header := records[0]
	rows := records[1:]

	position := make(map[string]int, len(header))
	for i, name := range header {
		position[strings.TrimSpace(name)] = i
	}

	series := make([]frame.Series, 0, len(c.cfg.Columns))
	for _, spec := range c.cfg.Columns {
		pos, ok := position[spec.Name]
		if !ok {
			return nil, errs.NewSchema(op, spec.Name, "declared column missing from source header")
		}

		cells := make([]string, len(rows))
		for i, row := range rows {
			if pos < len(row) {
				cells[i] = strings.TrimSpace(row[pos])
			}
		}

		col, err := buildSeries(spec, cells, c.mem)
		if err != nil {
			return nil, err
		}
		series = append(series, col)
	}

	f, err := frame.New(series...)
	if err != nil {
		return nil, errs.NewFetch(op, "assembling frame", err)
	}

	c.logger.Info("source table parsed",
		zap.Int("rows", f.Len()),
		zap.Int("columns", f.Width()))
	return f, nil
}

// buildSeries materializes one declared column. Empty cells become nulls;
// cells that fail to parse under the declared role are a fetch failure, not
// a silent default.
func buildSeries(spec config.ColumnSpec, cells []string, mem memory.Allocator) (frame.Series, error) {
	const op = "ingest.Read"

	switch spec.Role {
	case config.RoleNumeric:
		values := make([]float64, len(cells))
		valid := make([]bool, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errs.NewFetch(op, fmt.Sprintf("row %d: %q is not numeric in column %s", i+1, cell, spec.Name), err)
			}
			values[i] = v
			valid[i] = true
		}
		return frame.NewFloat64(spec.Name, values, valid, mem), nil

	case config.RoleIdentifier:
		values := make([]int64, len(cells))
		valid := make([]bool, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			v, err := strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, errs.NewFetch(op, fmt.Sprintf("row %d: %q is not an integer in column %s", i+1, cell, spec.Name), err)
			}
			values[i] = v
			valid[i] = true
		}
		return frame.NewInt64(spec.Name, values, valid, mem), nil

	case config.RoleBoolean:
		values := make([]bool, len(cells))
		valid := make([]bool, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			switch strings.ToLower(cell) {
			case "true", "y", "yes", "1":
				values[i] = true
			case "false", "n", "no", "0":
				values[i] = false
			default:
				return nil, errs.NewFetch(op, fmt.Sprintf("row %d: %q is not boolean in column %s", i+1, cell, spec.Name), nil)
			}
			valid[i] = true
		}
		return frame.NewBool(spec.Name, values, valid, mem), nil

	default:
		// Nominal, ordinal, numeric-categorical, date, time and text
		// columns stay textual until encoding. Numeric-coded categories
		// keep their source spelling.
		values := make([]string, len(cells))
		valid := make([]bool, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			values[i] = cell
			valid[i] = true
		}
		return frame.NewString(spec.Name, values, valid, mem), nil
	}
}
