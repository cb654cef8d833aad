// Package export renders the admin tables as CSV and XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// BOM makes spreadsheet programs read the file as UTF-8.
const BOM = "\uFEFF"

// Separator used for locally rendered CSV; German Excel expects ';'.
const Separator = ';'

// WithBOM prefixes text with the UTF-8 BOM unless it already has one.
func WithBOM(text string) []byte {
	if strings.HasPrefix(text, BOM) {
		return []byte(text)
	}
	return []byte(BOM + text)
}

// WriteCSV writes a BOM, the header row and records.
func WriteCSV(w io.Writer, headers []string, records [][]string) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// CSV renders headers and records into a byte slice.
func CSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, headers, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
