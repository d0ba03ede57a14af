// Package csvcodec converts lead collections to and from CSV.
package csvcodec

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// Header lists the exported columns in order. companyInfo is not exported.
var Header = []string{
	"id", "firstName", "lastName", "email", "companyName", "role",
	"status", "tags", "source", "createdAt", "notes", "followUpCount",
}

const (
	tagSeparator  = ";"
	defaultSource = "CSV Import"
)

// Codec reads and writes lead CSV files.
type Codec struct {
	logger *logger.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a codec.
func New(log *logger.Logger) *Codec {
	return &Codec{
		logger: logger.OrGlobal(log).Named("csv"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Export writes a header row and one row per lead. Textual values are always
// quoted; followUpCount is written bare. Nothing is written for zero leads.
func (c *Codec) Export(w io.Writer, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(Header, ","))

	for _, l := range leads {
		bw.WriteByte('\n')
		fields := []string{
			quote(l.ID),
			quote(l.FirstName),
			quote(l.LastName),
			quote(l.Email),
			quote(l.CompanyName),
			quote(l.Role),
			quote(string(l.Status)),
			quote(strings.Join(l.Tags, tagSeparator)),
			quote(l.Source),
			quote(formatTime(l.CreatedAt)),
			quote(l.Notes),
			strconv.Itoa(max(l.FollowUpCount, 0)),
		}
		bw.WriteString(strings.Join(fields, ","))
	}

	return bw.Flush()
}

// ExportString is Export into a string.
func (c *Codec) ExportString(leads []model.Lead) (string, error) {
	var sb strings.Builder
	if err := c.Export(&sb, leads); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// lineEndings folds CRLF and bare CR to LF; the CSV reader does the same
// inside quoted fields, so exports must too for a stable round trip.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func quote(s string) string {
	return `"` + strings.ReplaceAll(lineEndings.Replace(s), `"`, `""`) + `"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// RowError describes a skipped input row.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Result is the outcome of an import.
type Result struct {
	Leads   []model.Lead `json:"leads"`
	Skipped []RowError   `json:"skipped,omitempty"`
}

// Import parses leads from CSV text. The first record is the header and
// columns are mapped by name. Rows that fail to parse are logged and skipped.
// An error is returned only when the input cannot be read at all.
func (c *Codec) Import(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	res := Result{Leads: []model.Lead{}}

	var columns map[string]int
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			c.skip(&res, perr.StartLine, err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		if columns == nil {
			columns = headerIndex(record)
			continue
		}

		lead, err := c.decodeRow(columns, record)
		if err != nil {
			c.skip(&res, line, err)
			continue
		}
		res.Leads = append(res.Leads, lead)
		metrics.CSVRowsTotal.WithLabelValues("imported").Inc()
	}

	return res, nil
}

func (c *Codec) skip(res *Result, line int, err error) {
	c.logger.Warn("skipping csv row", zap.Int("line", line), zap.Error(err))
	metrics.CSVRowsTotal.WithLabelValues("skipped").Inc()
	res.Skipped = append(res.Skipped, RowError{Line: line, Err: err.Error()})
}

func headerIndex(record []string) map[string]int {
	idx := make(map[string]int, len(record))
	for i, h := range record {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (c *Codec) decodeRow(columns map[string]int, record []string) (model.Lead, error) {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	l := model.Lead{
		ID:          get("id"),
		FirstName:   get("firstName"),
		LastName:    get("lastName"),
		Email:       get("email"),
		CompanyName: get("companyName"),
		Role:        get("role"),
		Status:      model.LeadStatus(strings.TrimSpace(get("status"))),
		Tags:        []string{},
		Source:      get("source"),
		Notes:       get("notes"),
	}

	if strings.TrimSpace(l.ID) == "" {
		l.ID = c.newID()
	}
	if !l.Status.Valid() {
		l.Status = model.StatusNew
	}
	if tags := get("tags"); tags != "" {
		l.Tags = strings.Split(tags, tagSeparator)
	}
	if _, ok := columns["source"]; !ok {
		l.Source = defaultSource
	}
	if n, err := strconv.Atoi(strings.TrimSpace(get("followUpCount"))); err == nil && n > 0 {
		l.FollowUpCount = n
	}

	created := strings.TrimSpace(get("createdAt"))
	if created == "" {
		l.CreatedAt = c.now()
	} else {
		t, err := parseTime(created)
		if err != nil {
			return model.Lead{}, fmt.Errorf("invalid createdAt %q", created)
		}
		l.CreatedAt = t
	}

	return l, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
