package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column names of the IP-to-country table.
const (
	colLower   = "lower_bound_ip_address"
	colUpper   = "upper_bound_ip_address"
	colCountry = "country"
)

// LoadRanges parses an IP-to-country CSV and builds an Index.
// Bounds may be written as integers or floats ("16777216.0").
func LoadRanges(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{colLower, colUpper, colCountry} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lo, err := parseBound(rec[cols[colLower]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colLower, err)
		}
		hi, err := parseBound(rec[cols[colUpper]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colUpper, err)
		}
		entries = append(entries, Entry{Lower: lo, Upper: hi, Country: strings.TrimSpace(rec[cols[colCountry]])})
	}
	return NewIndex(entries)
}

// LoadRangesFile opens path and calls LoadRanges.
func LoadRangesFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ip ranges %s: %w", path, err)
	}
	defer f.Close()
	idx, err := LoadRanges(f)
	if err != nil {
		return nil, fmt.Errorf("load ip ranges %s: %w", path, err)
	}
	return idx, nil
}

func parseBound(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > math.MaxUint32 || math.IsNaN(f) {
		return 0, fmt.Errorf("bound %q outside IPv4 space", s)
	}
	return uint32(f), nil
}
