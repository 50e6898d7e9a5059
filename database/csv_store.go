package database

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultStoreTimeout = 5 * time.Second

// DefaultHeader is used when Append creates the log file.
var DefaultHeader = []string{"Timestamp", "Sender Email", ColumnReceiverEmail, "Subject", ColumnTrackingID, ColumnStatus}

// CSVStore keeps the send log in a flat CSV file that is rewritten as a
// whole on every mutation. All operations on one instance are serialized.
type CSVStore struct {
	path    string
	timeout time.Duration
	lock    chan struct{}
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore creates a store over the CSV file at path. The file does not
// have to exist yet.
func NewCSVStore(path string, timeout time.Duration) (*CSVStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("csv store: empty log file path")
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &CSVStore{
		path:    path,
		timeout: timeout,
		lock:    make(chan struct{}, 1),
	}, nil
}

// Path returns the log file location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Load(ctx context.Context) ([]SendRecord, bool, error) {
	var records []SendRecord
	var found bool
	err := s.do(ctx, func() error {
		t, err := s.readTable()
		if err != nil || t == nil {
			return err
		}
		found = true
		records = t.records()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if records == nil {
		records = []SendRecord{}
	}
	return records, found, nil
}

func (s *CSVStore) Find(ctx context.Context, sel Selector) ([]SendRecord, error) {
	records, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	matched := []SendRecord{}
	for _, rec := range records {
		if sel.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (s *CSVStore) ApplyTransition(ctx context.Context, sel Selector, status Status) (int, error) {
	var changed int
	err := s.do(ctx, func() error {
		t, err := s.readTable()
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTableNotFound
		}
		for _, row := range t.rows {
			if !sel.Matches(t.record(row)) {
				continue
			}
			if err := t.setStatus(row, status); err != nil {
				return fmt.Errorf("%w: encode status: %w", ErrStoreUnavailable, err)
			}
			changed++
		}
		if changed == 0 {
			return nil
		}
		return s.writeTable(t)
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *CSVStore) Append(ctx context.Context, rec SendRecord) error {
	if rec.Status == "" {
		rec.Status = StatusNotViewed
	}
	return s.do(ctx, func() error {
		t, err := s.readTable()
		if err != nil {
			return err
		}
		if t == nil || len(t.header) == 0 {
			bom := t != nil && t.bom
			t = &table{eol: "\n", bom: bom}
			if err := t.setHeader(append([]string(nil), DefaultHeader...)); err != nil {
				return err
			}
		}
		if rec.TrackingID != "" {
			for _, row := range t.rows {
				if t.cell(row, t.idCol) == rec.TrackingID {
					return fmt.Errorf("%w: %s", ErrDuplicateTrackingID, rec.TrackingID)
				}
			}
		}
		t.appendRecord(rec)
		return s.writeTable(t)
	})
}

// do runs fn while holding the store lock. The caller gets
// ErrStoreUnavailable once the timeout passes; fn keeps the lock until it
// returns so a slow write never overlaps with the next one.
func (s *CSVStore) do(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s: %w", ErrStoreUnavailable, s.path, ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-s.lock }()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, s.path, ctx.Err())
	}
}

const utf8BOM = "\ufeff"

// readTable returns nil, nil when the file does not exist.
func (s *CSVStore) readTable() (*table, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}
	t, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrMalformedTable, s.path, err)
	}
	return t, nil
}

func (s *CSVStore) writeTable(t *table) error {
	data, err := t.encode()
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStoreUnavailable, s.path, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStoreUnavailable, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %w", ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// tableRow keeps the bytes a record was read from. Rewrites splice the
// status cell into raw so every other cell is written back byte for byte,
// quoting and embedded CRLFs included. A nil raw means the row is encoded
// from cells.
type tableRow struct {
	cells       []string
	raw         []byte
	statusStart int // offsets of the status cell within raw, -1 if absent
	statusEnd   int
}

// table is the in-memory form of the log.
type table struct {
	header    []string
	rawHeader []byte
	bom       bool
	eol       string
	rows      []*tableRow
	idCol     int
	emailCol  int
	statusCol int
}

func parseTable(data []byte) (*table, error) {
	t := &table{eol: "\n", idCol: -1, emailCol: -1, statusCol: -1}
	if bytes.HasPrefix(data, []byte(utf8BOM)) {
		t.bom = true
		data = data[len(utf8BOM):]
	}

	lineStarts := []int{0}
	for i, b := range data {
		if b == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	first := true
	for {
		start := int(r.InputOffset())
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		end := int(r.InputOffset())
		raw := data[start:end:end]

		if first {
			first = false
			if bytes.HasSuffix(raw, []byte("\r\n")) {
				t.eol = "\r\n"
			}
			if err := t.setHeader(cells); err != nil {
				return nil, err
			}
			t.rawHeader = raw
			continue
		}

		row := &tableRow{cells: cells, raw: raw, statusStart: -1, statusEnd: -1}
		if t.statusCol < len(cells) {
			line, col := r.FieldPos(t.statusCol)
			row.statusStart = lineStarts[line-1] + col - 1 - start
			if t.statusCol+1 < len(cells) {
				line, col = r.FieldPos(t.statusCol + 1)
				row.statusEnd = lineStarts[line-1] + col - 2 - start
			} else {
				row.statusEnd = len(trimEOL(raw))
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *table) setHeader(header []string) error {
	t.header = header
	t.idCol = indexOf(header, ColumnTrackingID)
	t.emailCol = indexOf(header, ColumnReceiverEmail)
	t.statusCol = indexOf(header, ColumnStatus)

	var missing []string
	if t.idCol < 0 {
		missing = append(missing, ColumnTrackingID)
	}
	if t.emailCol < 0 {
		missing = append(missing, ColumnReceiverEmail)
	}
	if t.statusCol < 0 {
		missing = append(missing, ColumnStatus)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrMalformedTable, strings.Join(missing, ", "))
	}
	return nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func trimEOL(raw []byte) []byte {
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	return bytes.TrimSuffix(raw, []byte("\r"))
}

func (t *table) cell(row *tableRow, col int) string {
	if col < 0 || col >= len(row.cells) {
		return ""
	}
	return row.cells[col]
}

func (t *table) setStatus(row *tableRow, status Status) error {
	for len(row.cells) <= t.statusCol {
		row.cells = append(row.cells, "")
		row.raw = nil
	}
	row.cells[t.statusCol] = string(status)
	if row.raw == nil || row.statusStart < 0 {
		row.raw = nil
		return nil
	}

	field, err := t.encodeFields(string(status))
	if err != nil {
		return err
	}
	field = trimEOL(field)
	raw := make([]byte, 0, len(row.raw)+len(field))
	raw = append(raw, row.raw[:row.statusStart]...)
	raw = append(raw, field...)
	raw = append(raw, row.raw[row.statusEnd:]...)
	row.raw = raw
	row.statusEnd = row.statusStart + len(field)
	return nil
}

func (t *table) record(row *tableRow) SendRecord {
	rec := SendRecord{
		TrackingID:    t.cell(row, t.idCol),
		ReceiverEmail: t.cell(row, t.emailCol),
		Status:        Status(t.cell(row, t.statusCol)),
	}
	for i, name := range t.header {
		if i == t.idCol || i == t.emailCol || i == t.statusCol {
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]string)
		}
		rec.Attributes[name] = t.cell(row, i)
	}
	return rec
}

func (t *table) records() []SendRecord {
	out := make([]SendRecord, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, t.record(row))
	}
	return out
}

// appendRecord adds rec as a new row. Attributes without a column get one,
// with existing rows padded to the new width.
func (t *table) appendRecord(rec SendRecord) {
	var added []string
	for _, name := range sortedKeys(rec.Attributes) {
		if indexOf(t.header, name) >= 0 {
			continue
		}
		t.header = append(t.header, name)
		added = append(added, name)
	}
	if len(added) > 0 {
		t.rawHeader = nil
		for _, row := range t.rows {
			for len(row.cells) < len(t.header) {
				row.cells = append(row.cells, "")
			}
			if row.raw != nil {
				row.raw = padRaw(row.raw, len(added))
			}
		}
	}

	cells := make([]string, len(t.header))
	for i, name := range t.header {
		switch i {
		case t.idCol:
			cells[i] = rec.TrackingID
		case t.emailCol:
			cells[i] = rec.ReceiverEmail
		case t.statusCol:
			cells[i] = string(rec.Status)
		default:
			cells[i] = rec.Attributes[name]
		}
	}
	t.rows = append(t.rows, &tableRow{cells: cells, statusStart: -1, statusEnd: -1})
}

// padRaw appends n empty cells before the line terminator of raw.
func padRaw(raw []byte, n int) []byte {
	body := trimEOL(raw)
	out := make([]byte, 0, len(raw)+n)
	out = append(out, body...)
	out = append(out, strings.Repeat(",", n)...)
	return append(out, raw[len(body):]...)
}

func (t *table) encodeFields(fields ...string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = t.eol == "\r\n"
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *table) encode() ([]byte, error) {
	var buf bytes.Buffer
	if t.bom {
		buf.WriteString(utf8BOM)
	}
	chunks := make([][]byte, 0, len(t.rows)+1)
	header := t.rawHeader
	if header == nil {
		var err error
		if header, err = t.encodeFields(t.header...); err != nil {
			return nil, err
		}
	}
	chunks = append(chunks, header)
	for _, row := range t.rows {
		raw := row.raw
		if raw == nil {
			var err error
			if raw, err = t.encodeFields(row.cells...); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, raw)
	}
	for i, chunk := range chunks {
		buf.Write(chunk)
		// A last line without a terminator gets one once a row follows it.
		if i < len(chunks)-1 && !bytes.HasSuffix(chunk, []byte("\n")) {
			buf.WriteString(t.eol)
		}
	}
	return buf.Bytes(), nil
}
