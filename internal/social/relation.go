// Relation scores: bounded sentiment between two entities of the same kind.
package social

// Relation score bounds.
const (
	MinScore     = -1.0
	MaxScore     = 1.0
	NeutralScore = 0.0
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UpdateScore applies a change category to a relation score and clamps the
// result to [-1, 1]. Callers own storing the result.
func UpdateScore(current float64, c Change) float64 {
	return Clamp(current+c.Delta(), MinScore, MaxScore)
}

// Ladder maps a relation score to a label. Labels are ordered from most
// positive to most negative: three positive rungs, neutral, three negative.
type Ladder [7]string

// Labels for society-to-society relations.
var SocietyLadder = Ladder{"Allied", "Friendly", "Positive", "Neutral", "Tense", "Unfriendly", "Hostile"}

// Labels for blob-to-blob relationships.
var BlobLadder = Ladder{"close friend", "friend", "acquaintance", "neutral", "wary", "dislikes", "enemy"}

// Describe returns the label for score.
func (l Ladder) Describe(score float64) string {
	switch {
	case score >= 0.75:
		return l[0]
	case score >= 0.4:
		return l[1]
	case score >= 0.1:
		return l[2]
	case score <= -0.75:
		return l[6]
	case score <= -0.4:
		return l[5]
	case score <= -0.1:
		return l[4]
	}
	return l[3]
}
