package secmaster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/guttosm/isinmap/internal/domain/models"
)

// requiredHeaders are matched by name; column order is free and extra columns are ignored.
var requiredHeaders = []string{"ticker", "issuer", "issue", "isin"}

// Reader streams security master rows from tab-separated input.
//
// It fails on:
//   - a header missing any of the required columns (or repeating one)
//   - a data row whose field count differs from the header's
//   - malformed quoting
//
// Values are returned verbatim; only header names are trimmed.
type Reader struct {
	r    *csv.Reader
	cols [4]int // positions of ticker, issuer, issue, isin
	line int
}

// NewReader reads and validates the header row of r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	// FieldsPerRecord = 0: every row must match the header length.

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read header: empty security master")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[name]; dup {
			return nil, fmt.Errorf("invalid header: duplicate column %q", name)
		}
		pos[name] = i
	}

	sr := &Reader{r: cr}
	var missing []string
	for i, name := range requiredHeaders {
		p, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sr.cols[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid header: missing column(s) %s", strings.Join(missing, ", "))
	}

	return sr, nil
}

// Next returns the next row. It returns io.EOF after the last row.
func (r *Reader) Next() (models.Security, error) {
	rec, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.Security{}, io.EOF
		}
		return models.Security{}, fmt.Errorf("read line after %d: %w", r.line, err)
	}
	r.line++

	return models.Security{
		Ticker: rec[r.cols[0]],
		Issuer: rec[r.cols[1]],
		Issue:  rec[r.cols[2]],
		ISIN:   rec[r.cols[3]],
		Line:   r.line,
	}, nil
}

// Line is the number of data rows read so far.
func (r *Reader) Line() int {
	return r.line
}
