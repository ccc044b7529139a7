package engine

import (
	"strings"
	"unicode"

	"github.com/talgya/blob-world/internal/social"
)

// Sentiment kinds recorded in blob history.
const (
	Positive    = "positive"
	Negative    = "negative"
	Neutral     = "neutral"
	Interaction = "interaction"
)

var positiveWords = wordSet(
	"happy", "happier", "joy", "joyful", "gain", "gained", "gains", "found", "improved",
	"better", "enjoyed", "helped", "thrived", "prospered", "celebrated", "won",
	"grateful", "hopeful", "proud", "healed", "rewarded", "befriended", "safe",
	"friend", "friends", "friendly", "friendship", "help", "helping",
)

var negativeWords = wordSet(
	"sad", "sadder", "lost", "hurt", "damaged", "worse", "scared", "angry", "afraid",
	"injured", "suffered", "starved", "hungry", "sick", "betrayed", "exiled",
	"fearful", "grieving", "destroyed", "robbed", "lonely", "defeated",
	"fight", "fought", "fighting",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Classify labels text by lexicon words. Any positive word wins over
// negative ones; text with neither is neutral.
func Classify(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	negative := false
	for _, w := range words {
		if positiveWords[w] {
			return Positive
		}
		if negativeWords[w] {
			negative = true
		}
	}
	if negative {
		return Negative
	}
	return Neutral
}

// relationChange maps a sentiment to the relationship delta between blobs
// an impact mentions together.
func relationChange(kind string) social.Change {
	switch kind {
	case Positive:
		return social.Increase
	case Negative:
		return social.Decrease
	}
	return social.NoChange
}
