// Demographic sampling - draws property sets for new blobs from fixed
// weighted categorical tables (survey-style population weights).
package agents

import (
	"math/rand"
)

// attribute is one categorical column with its relative weights.
type attribute struct {
	Name    string
	Values  []string
	Weights []float64
}

// attributes are drawn in this order; Blob.Describe uses the same order.
var attributes = []attribute{
	{
		Name:    "Age",
		Values:  []string{"18 to 24", "25 to 34", "35 to 44", "45 to 54", "55 to 64", "65 to 74", "75 or more"},
		Weights: []float64{11.03, 13.88, 17.49, 19.77, 21.48, 13.50, 2.85},
	},
	{
		Name: "Census Division",
		Values: []string{"New England", "Middle Atlantic", "E.N. Central", "W.N. Central", "South Atlantic",
			"E.S. Central", "W.S. Central", "Mountain", "Pacific", "Foreign"},
		Weights: []float64{6.65, 12.83, 18.73, 8.08, 10.08, 11.5, 8.65, 5.13, 15.78, 2.57},
	},
	{
		Name: "Education",
		Values: []string{"Less than high school graduate", "High school graduate", "Associate/junior college",
			"Bachelor's degree", "Graduate degree"},
		Weights: []float64{2.28, 38.88, 17.59, 26.9, 14.35},
	},
	{
		Name: "Sexuality",
		Values: []string{"Heterosexual/straight", "Gay or lesbian", "Bisexual", "Asexual", "Pansexual",
			"Other sexual orientation"},
		Weights: []float64{82.2, 4.36, 8.04, 1.72, 2.41, 1.15},
	},
	{
		Name:    "Gender",
		Values:  []string{"Female", "Male"},
		Weights: []float64{56.37, 43.63},
	},
	{
		Name: "Income",
		Values: []string{"Less than $25,000", "$25,000 to $34,999", "$35,000 to $49,999", "$50,000 to $74,999",
			"$75,000 to $99,999", "$100,000 to $124,999", "$125,000 to $149,999", "$150,000 to $174,999",
			"$175,000 to $199,999", "$200,000 to $249,999", "$250,000 or more"},
		Weights: []float64{18.83, 11.83, 13.89, 20.44, 14.7, 8.04, 5.05, 2.18, 1.61, 1.38, 2.18},
	},
	{
		Name:    "Neighborhood",
		Values:  []string{"Urban", "Suburban", "Rural"},
		Weights: []float64{30.88, 48.11, 21.13},
	},
	{
		Name: "Political Ideology",
		Values: []string{"Extremely Liberal", "Liberal", "Slightly Liberal", "Moderate", "Slightly conservative",
			"Conservative", "Extremely conservative"},
		Weights: []float64{11.31, 19.01, 9.32, 28.8, 8.94, 16.83, 5.8},
	},
	{
		Name: "Political Party Preference",
		Values: []string{"Strong Democrat", "Democrat", "Independent, close to Dem.", "Independent",
			"Independent, close to Rep.", "Republican", "Strong Republican", "Other"},
		Weights: []float64{21.96, 13.31, 11.88, 15.59, 8.46, 11.6, 14.83, 2.38},
	},
	{
		Name:    "Marital Status",
		Values:  []string{"Single", "Married", "Separated", "Divorced", "Widowed"},
		Weights: []float64{30, 50, 5, 10, 5},
	},
	{
		Name:    "Employment Status",
		Values:  []string{"Employed", "Unemployed", "Student", "Retired", "Self-employed"},
		Weights: []float64{50, 10, 15, 20, 5},
	},
}

// AttributeNames returns the sampled property names in draw order.
func AttributeNames() []string {
	names := make([]string, len(attributes))
	for i, a := range attributes {
		names[i] = a.Name
	}
	return names
}

// Sampler draws demographic property sets. Deterministic for a given seed.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler with the given seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed + 300))}
}

// Sample returns n independent property maps.
func (s *Sampler) Sample(n int) []map[string]string {
	out := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		props := make(map[string]string, len(attributes))
		for _, a := range attributes {
			props[a.Name] = s.weightedChoice(a.Values, a.Weights)
		}
		out = append(out, props)
	}
	return out
}

func (s *Sampler) weightedChoice(values []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := s.rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return values[i]
		}
		r -= w
	}
	return values[len(values)-1]
}
