package tablecode

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var csvHeader = []string{"Location", "Table", "Full URL"}

// Encoding of the exported files.
type Encoding string

const (
	UTF8    Encoding = "utf-8"
	UTF16LE Encoding = "utf-16le" // with BOM, what spreadsheet tools expect
)

// encodeWriter wraps w so that UTF-8 input is written in enc.
func encodeWriter(w io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch Encoding(strings.ToLower(string(enc))) {
	case "", UTF8:
		return nopCloser{w}, nil
	case UTF16LE:
		encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		return transform.NewWriter(w, encoder), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// WriteCSV writes entries as "Location,Table,Full URL" rows.
func WriteCSV(w io.Writer, entries []Entry, enc Encoding) error {
	out, err := encodeWriter(w, enc)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.LocationName, e.TableName, e.FullURL}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return out.Close()
}

// TextLine formats one entry for the plain text export.
func TextLine(e Entry) string {
	return fmt.Sprintf("%s - Masa %s: %s", e.LocationName, e.TableName, e.FullURL)
}

// WriteText writes one TextLine per entry, newline separated.
func WriteText(w io.Writer, entries []Entry, enc Encoding) error {
	out, err := encodeWriter(w, enc)
	if err != nil {
		return err
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = TextLine(e)
	}
	if _, err := io.WriteString(out, strings.Join(lines, "\n")); err != nil {
		return err
	}
	return out.Close()
}

// WriteURLs writes the bare full URLs, one per line.
func WriteURLs(w io.Writer, entries []Entry) error {
	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.FullURL
	}
	_, err := io.WriteString(w, strings.Join(urls, "\n"))
	return err
}
