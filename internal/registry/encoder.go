package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UnknownCode is reserved for categories never seen during fitting.
const UnknownCode = -1

// Encoder maps a categorical value to a stable integer code.
type Encoder interface {
	// Encode returns the code for category, or UnknownCode if it was not
	// observed during fitting.
	Encode(category string) int
	IsKnown(category string) bool
}

// LabelEncoder assigns codes by lexicographic order of the observed classes,
// so the same vocabulary always yields the same codes.
type LabelEncoder struct {
	classes []string
	codes   map[string]int
}

// NewLabelEncoder fits an encoder over values. Duplicates are collapsed.
func NewLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		codes[c] = i
	}
	return &LabelEncoder{classes: classes, codes: codes}
}

func (e *LabelEncoder) Encode(category string) int {
	if code, ok := e.codes[category]; ok {
		return code
	}
	return UnknownCode
}

func (e *LabelEncoder) IsKnown(category string) bool {
	_, ok := e.codes[category]
	return ok
}

// Classes returns the fitted vocabulary in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len returns the vocabulary size.
func (e *LabelEncoder) Len() int { return len(e.classes) }

type labelEncoderJSON struct {
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderJSON{Classes: e.classes})
}

// UnmarshalJSON restores an encoder. Classes must already be sorted and
// unique; anything else means the artifact was not produced by this package.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw labelEncoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i := 1; i < len(raw.Classes); i++ {
		if raw.Classes[i-1] >= raw.Classes[i] {
			return fmt.Errorf("label encoder classes not strictly sorted at %d (%q, %q)", i, raw.Classes[i-1], raw.Classes[i])
		}
	}
	*e = *NewLabelEncoder(raw.Classes)
	return nil
}
