package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLine bounds a single record when reading.
const maxLine = 1 << 20

// Scan decodes records from r, calling fn for each. Malformed lines are
// skipped and counted.
func Scan(r io.Reader, fn func(Record) error) (skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Event == "" {
			skipped++
			continue
		}
		if err := fn(rec); err != nil {
			return skipped, err
		}
	}
	return skipped, scanner.Err()
}

// ReadFile returns every well-formed record in the file at path and the
// number of skipped lines. A missing file has no records.
func ReadFile(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []Record
	skipped, err := Scan(f, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return records, skipped, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, skipped, nil
}

// Tail returns the last n records of the file at path.
func Tail(path string, n int) ([]Record, int, error) {
	records, skipped, err := ReadFile(path)
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, skipped, err
}
