package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"dupcheck/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a delimited export. The delimiter is taken from the header
// line: semicolon-separated files are common where comma is the decimal mark.
func readCSV(data []byte) (*domain.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return normalise(rows)
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
