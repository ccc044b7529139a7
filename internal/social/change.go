// Change categories: the closed vocabulary the narrator uses for every
// relation and metric delta.
package social

import "strings"

// Change is one of the five canonical change categories.
type Change string

const (
	BigDecrease Change = "big_decrease"
	Decrease    Change = "decrease"
	NoChange    Change = "none"
	Increase    Change = "increase"
	BigIncrease Change = "big_increase"
)

// Changes lists the categories from most negative to most positive.
var Changes = []Change{BigDecrease, Decrease, NoChange, Increase, BigIncrease}

var changeDeltas = map[Change]float64{
	BigDecrease: -0.25,
	Decrease:    -0.1,
	NoChange:    0.0,
	Increase:    0.1,
	BigIncrease: 0.25,
}

// Delta returns the fixed score delta for the category. Unknown values are 0.
func (c Change) Delta() float64 {
	return changeDeltas[c]
}

// Valid reports whether c belongs to the closed set.
func (c Change) Valid() bool {
	_, ok := changeDeltas[c]
	return ok
}

// Priority ranks categories for headline selection.
// big_increase=5, big_decrease=4, increase=3, decrease=2, none=1.
func (c Change) Priority() int {
	switch c {
	case BigIncrease:
		return 5
	case BigDecrease:
		return 4
	case Increase:
		return 3
	case Decrease:
		return 2
	case NoChange:
		return 1
	}
	return 0
}

// noneTokens are the phrasings treated as "none". Checked after the
// decrease tokens and before the increase tokens.
var noneTokens = []string{"none", "neutral", "no_change", "unchanged"}

// NormalizeChange folds a free-form category string into the closed set.
// Specific tokens are checked before the generic substrings they contain;
// anything unrecognised becomes NoChange.
func NormalizeChange(raw string) Change {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)

	if strings.Contains(s, string(BigDecrease)) {
		return BigDecrease
	}
	if strings.Contains(s, string(Decrease)) {
		return Decrease
	}
	for _, tok := range noneTokens {
		if strings.Contains(s, tok) {
			return NoChange
		}
	}
	if strings.Contains(s, string(BigIncrease)) {
		return BigIncrease
	}
	if strings.Contains(s, string(Increase)) {
		return Increase
	}
	return NoChange
}
