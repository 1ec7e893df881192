// Package geo maps IPv4 addresses to countries.
//
// The authoritative source is a table of non-overlapping integer ranges
// (Index). Resolvers wrap it for request-time use and can fall back to a
// MaxMind database or cache results in Redis.
package geo

import (
	"fmt"
	"sort"
)

// UnknownCountry is the category used when an address resolves to no range.
const UnknownCountry = "Unknown"

// Entry is one [Lower, Upper] address range owned by Country.
type Entry struct {
	Lower   uint32
	Upper   uint32
	Country string
}

// Index answers interval-containment queries over a sorted range table.
// It is immutable once built and safe for concurrent use.
type Index struct {
	lowers  []uint32
	entries []Entry
}

// NewIndex sorts entries by lower bound and validates the table.
// Inverted or overlapping ranges are rejected.
func NewIndex(entries []Entry) (*Index, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Lower < sorted[j].Lower })

	lowers := make([]uint32, len(sorted))
	for i, e := range sorted {
		if e.Lower > e.Upper {
			return nil, fmt.Errorf("range %d (%s): lower bound %d > upper bound %d", i, e.Country, e.Lower, e.Upper)
		}
		if i > 0 && e.Lower <= sorted[i-1].Upper {
			return nil, fmt.Errorf("range %d (%s) [%d,%d] overlaps %s [%d,%d]",
				i, e.Country, e.Lower, e.Upper, sorted[i-1].Country, sorted[i-1].Lower, sorted[i-1].Upper)
		}
		lowers[i] = e.Lower
	}
	return &Index{lowers: lowers, entries: sorted}, nil
}

// Len returns the number of ranges.
func (x *Index) Len() int { return len(x.entries) }

// Lookup finds the entry with the greatest lower bound <= addr and checks
// that addr does not exceed its upper bound.
func (x *Index) Lookup(addr uint32) (string, bool) {
	i := x.predecessor(addr)
	if i < 0 || addr > x.entries[i].Upper {
		return "", false
	}
	return x.entries[i].Country, true
}

// predecessor returns the index of the last range whose lower bound is <= addr,
// or -1 if none.
func (x *Index) predecessor(addr uint32) int {
	// first lower bound strictly greater than addr
	i := sort.Search(len(x.lowers), func(i int) bool { return x.lowers[i] > addr })
	return i - 1
}

// Match is the join result for one input row.
type Match struct {
	Addr    uint32
	Country string
	OK      bool
}

// Coverage reports how many rows resolved to a country.
type Coverage struct {
	Matched int
	Total   int
}

// Unmatched returns the number of rows with no country.
func (c Coverage) Unmatched() int { return c.Total - c.Matched }

// Ratio returns Matched/Total, 0 for an empty batch.
func (c Coverage) Ratio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Matched) / float64(c.Total)
}

// Join resolves a batch of addresses. Addresses are visited in sorted order so
// the range cursor only moves forward (an as-of join); results are returned in
// the input order.
func (x *Index) Join(addrs []uint32) ([]Match, Coverage) {
	order := make([]int, len(addrs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return addrs[order[a]] < addrs[order[b]] })

	out := make([]Match, len(addrs))
	cov := Coverage{Total: len(addrs)}
	cursor := -1
	for _, row := range order {
		addr := addrs[row]
		for cursor+1 < len(x.lowers) && x.lowers[cursor+1] <= addr {
			cursor++
		}
		m := Match{Addr: addr}
		if cursor >= 0 && addr <= x.entries[cursor].Upper {
			m.Country = x.entries[cursor].Country
			m.OK = true
			cov.Matched++
		}
		out[row] = m
	}
	return out, cov
}
