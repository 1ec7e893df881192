// Package ipcodec converts between dotted-decimal IPv4 strings and their
// big-endian 32-bit integer form.
//
// Both directions are total: malformed input maps to the sentinel 0 (or
// "0.0.0.0") instead of failing, so a single bad row never aborts a batch.
package ipcodec

import (
	"math"
	"strconv"
	"strings"
)

// Unknown is the sentinel returned for unparseable input.
const Unknown uint32 = 0

const twoTo32 = 1 << 32

// ToInt parses s into its 32-bit integer form. Strings that are not in
// dotted-decimal form are reinterpreted as a float (the corruption seen when
// IP columns pass through floating-point storage), truncated modulo 2^32 and
// parsed again. Returns Unknown when every attempt fails.
func ToInt(s string) uint32 {
	s = strings.TrimSpace(s)
	if n, ok := parseDotted(s); ok {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Unknown
	}
	n, ok := parseDotted(FromInt(fromFloat(f)))
	if !ok {
		return Unknown
	}
	return n
}

// FromInt formats n as a dotted-decimal string. It never fails.
func FromInt(n uint32) string {
	var b strings.Builder
	b.Grow(15)
	b.WriteString(strconv.Itoa(int(n >> 24 & 0xff)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(n >> 16 & 0xff)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(n >> 8 & 0xff)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(n & 0xff)))
	return b.String()
}

// FromFloat recovers the dotted-decimal form of a float-corrupted address.
func FromFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return FromInt(Unknown)
	}
	return FromInt(fromFloat(f))
}

// Valid reports whether s is a canonical dotted-decimal IPv4 address.
func Valid(s string) bool {
	n, ok := parseDotted(s)
	return ok && FromInt(n) == s
}

// fromFloat truncates f toward zero and reduces it modulo 2^32 with two's
// complement wrap for negative values.
func fromFloat(f float64) uint32 {
	m := math.Mod(math.Trunc(f), twoTo32)
	if m < 0 {
		m += twoTo32
	}
	return uint32(m)
}

func parseDotted(s string) (uint32, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var n uint32
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return 0, false
		}
		v := 0
		for i := 0; i < len(p); i++ {
			c := p[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			v = v*10 + int(c-'0')
		}
		if v > 255 {
			return 0, false
		}
		n = n<<8 | uint32(v)
	}
	return n, true
}
