package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrSourceNotFound indicates the CSV file does not exist or cannot be opened.
	ErrSourceNotFound = errors.New("csv source not found")
	// ErrEncoding indicates the source contains bytes that do not decode as UTF-8.
	ErrEncoding = errors.New("csv source has invalid encoding")
	// ErrEmptyHeader indicates the first line of the source is missing or empty.
	ErrEmptyHeader = errors.New("csv source has an empty header")
	// ErrMalformedRow marks a data row whose field count does not match the
	// header. Malformed rows are skipped and counted, never fatal.
	ErrMalformedRow = errors.New("malformed csv row")
)

// CSVReader streams records from a delimited text file. It yields the header
// once, then data rows one at a time in file order. The stream is finite and
// forward-only; to restart, open a new reader on the same path.
//
// Rows whose field count disagrees with the header are skipped, counted and
// logged rather than aborting the load.
type CSVReader struct {
	path    string
	file    *os.File
	reader  *csv.Reader
	header  []string
	line    int
	skipped int
	quiet   bool
}

// NewCSVReader opens the source file and validates its header.
func NewCSVReader(path string) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.Wrapf(ErrSourceNotFound, "open %s", path)
		}
		return nil, pkgerrors.Wrapf(err, "open %s", path)
	}

	r := csv.NewReader(file)
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, pkgerrors.Wrapf(ErrEmptyHeader, "read header of %s", path)
		}
		return nil, pkgerrors.Wrapf(err, "read header of %s", path)
	}
	// A header of only delimiters (",,") carries no column names either.
	empty := true
	for _, name := range header {
		if name != "" {
			empty = false
			break
		}
	}
	if empty {
		file.Close()
		return nil, pkgerrors.Wrapf(ErrEmptyHeader, "read header of %s", path)
	}
	for _, name := range header {
		if !utf8.ValidString(name) {
			file.Close()
			return nil, pkgerrors.Wrapf(ErrEncoding, "header of %s", path)
		}
	}

	// Enforce the header's field count on every subsequent record so short and
	// long rows surface as csv.ErrFieldCount.
	r.FieldsPerRecord = len(header)

	return &CSVReader{
		path:   path,
		file:   file,
		reader: r,
		header: header,
		line:   1,
	}, nil
}

// Header returns the ordered column names from the first line of the source.
func (c *CSVReader) Header() []string {
	return c.header
}

// Next returns the next well-formed row, skipping malformed ones. It returns
// io.EOF once the source is drained.
func (c *CSVReader) Next() (RawRow, error) {
	for {
		record, err := c.reader.Read()
		c.line++
		if err == nil {
			if !validUTF8(record) {
				return nil, pkgerrors.Wrapf(ErrEncoding, "%s line %d", c.path, c.line)
			}
			return RawRow(record), nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			c.skipped++
			if !c.quiet {
				log.Printf("Skipping malformed row at %s line %d: %v", c.path, parseErr.Line, parseErr.Err)
			}
			continue
		}
		return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedRow, c.path, c.line, err)
	}
}

// Skipped reports how many malformed rows have been dropped so far.
func (c *CSVReader) Skipped() int {
	return c.skipped
}

// Close releases the underlying file handle. Safe to call more than once.
func (c *CSVReader) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// ReadSample drains up to n rows for schema inference. The reader is not
// restartable, so callers reopen the source for the load pass afterwards.
// Malformed rows in the sample window are skipped silently; the load pass
// re-reads the file and owns the one log event per bad row.
func ReadSample(path string, n int) ([]string, []RawRow, error) {
	reader, err := NewCSVReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()
	reader.quiet = true

	rows := make([]RawRow, 0, n)
	for len(rows) < n {
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return reader.Header(), rows, nil
}

func validUTF8(record []string) bool {
	for _, field := range record {
		if !utf8.ValidString(field) {
			return false
		}
	}
	return true
}
