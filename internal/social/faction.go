// Societies - ideological groups of blobs with membership and inter-society relations.
package social

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownSociety is returned when an operation names a society that does not exist.
var ErrUnknownSociety = errors.New("unknown society")

// Society is a group of blobs sharing an ideology and a value set.
type Society struct {
	ID       int      `json:"id"`
	Ideology string   `json:"ideology"`
	Values   []string `json:"values"`

	// Members is kept sorted and duplicate-free. Only Registry mutates it.
	Members []int `json:"members"`

	// Relations with other societies (society ID → -1.0 to 1.0).
	Relations map[int]float64 `json:"relations"`
}

// Charter is the founding description of a society.
type Charter struct {
	Ideology string   `json:"ideology"`
	Values   []string `json:"values"`
}

// Name is the display name used in prompts and reports.
func (s *Society) Name() string {
	return fmt.Sprintf("Society-%d", s.ID)
}

// HasMember reports whether blobID belongs to the society.
func (s *Society) HasMember(blobID int) bool {
	i := sort.SearchInts(s.Members, blobID)
	return i < len(s.Members) && s.Members[i] == blobID
}

// AddMember inserts blobID into the member set. Idempotent.
func (s *Society) AddMember(blobID int) {
	i := sort.SearchInts(s.Members, blobID)
	if i < len(s.Members) && s.Members[i] == blobID {
		return
	}
	s.Members = append(s.Members, 0)
	copy(s.Members[i+1:], s.Members[i:])
	s.Members[i] = blobID
}

// RemoveMember deletes blobID from the member set if present.
func (s *Society) RemoveMember(blobID int) {
	i := sort.SearchInts(s.Members, blobID)
	if i < len(s.Members) && s.Members[i] == blobID {
		s.Members = append(s.Members[:i], s.Members[i+1:]...)
	}
}

// Relation returns the relation score with another society, neutral if never set.
func (s *Society) Relation(otherID int) float64 {
	return s.Relations[otherID]
}

// Registry owns every society of a world.
type Registry struct {
	societies []*Society
	index     map[int]*Society
	nextID    int
}

// NewRegistry creates an empty society registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[int]*Society)}
}

// CreateBatch founds one society per charter with sequential IDs and
// initializes every pair of societies to a neutral relation.
func (r *Registry) CreateBatch(charters []Charter) []*Society {
	created := make([]*Society, 0, len(charters))
	for _, c := range charters {
		s := &Society{
			ID:        r.nextID,
			Ideology:  c.Ideology,
			Values:    append([]string(nil), c.Values...),
			Members:   []int{},
			Relations: make(map[int]float64),
		}
		r.nextID++
		r.societies = append(r.societies, s)
		r.index[s.ID] = s
		created = append(created, s)
	}

	for _, s := range r.societies {
		for _, other := range r.societies {
			if s.ID == other.ID {
				continue
			}
			if _, ok := s.Relations[other.ID]; !ok {
				s.Relations[other.ID] = NeutralScore
			}
		}
	}
	return created
}

// Get returns the society with the given ID.
func (r *Registry) Get(id int) (*Society, bool) {
	s, ok := r.index[id]
	return s, ok
}

// All returns every society in creation order.
func (r *Registry) All() []*Society {
	return r.societies
}

// Len returns the number of societies.
func (r *Registry) Len() int {
	return len(r.societies)
}

// UpdateRelation applies a change to the relation between a and b on both
// sides. A missing entry starts at neutral. Returns the score before and after.
func (r *Registry) UpdateRelation(a, b int, c Change) (before, after float64, err error) {
	if a == b {
		return 0, 0, fmt.Errorf("society %d cannot relate to itself", a)
	}
	sa, ok := r.index[a]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownSociety, a)
	}
	sb, ok := r.index[b]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownSociety, b)
	}

	before = sa.Relations[b]
	after = UpdateScore(before, c)
	sa.Relations[b] = after
	sb.Relations[a] = UpdateScore(sb.Relations[a], c)
	return before, after, nil
}

// PairKey returns the canonical directionless key for a society pair,
// smaller ID first.
func PairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// Describe renders every society for the narrator: ideology, values,
// members and labelled relations. nameOf resolves member display names.
func (r *Registry) Describe(nameOf func(blobID int) string) string {
	if len(r.societies) == 0 {
		return "No societies have formed yet."
	}

	var b strings.Builder
	for i, s := range r.societies {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\nIdeology: %s\nValues: %s\n", s.Name(), s.Ideology, strings.Join(s.Values, ", "))

		members := "None"
		if len(s.Members) > 0 {
			names := make([]string, len(s.Members))
			for j, id := range s.Members {
				names[j] = nameOf(id)
			}
			members = strings.Join(names, ", ")
		}
		fmt.Fprintf(&b, "Members: %s\nRelations:\n", members)

		others := r.sortedRelationIDs(s)
		if len(others) == 0 {
			b.WriteString("  None\n")
			continue
		}
		for _, otherID := range others {
			score := s.Relations[otherID]
			fmt.Fprintf(&b, "  - With Society-%d: %s (%.1f)\n", otherID, SocietyLadder.Describe(score), score)
		}
	}
	return b.String()
}

// RelationsReport lists each unordered pair of societies once.
func (r *Registry) RelationsReport() string {
	if len(r.societies) == 0 {
		return "No societies exist in the simulation."
	}

	var b strings.Builder
	b.WriteString("Current Society Relations:")
	for i, s1 := range r.societies {
		for _, s2 := range r.societies[i+1:] {
			score := s1.Relations[s2.ID]
			fmt.Fprintf(&b, "\n- %s (%s) and %s (%s): %s (%.2f)",
				s1.Name(), s1.Ideology, s2.Name(), s2.Ideology, SocietyLadder.Describe(score), score)
		}
	}
	return b.String()
}

func (r *Registry) sortedRelationIDs(s *Society) []int {
	ids := make([]int, 0, len(s.Relations))
	for id := range s.Relations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DefaultCharters are used when the narrator fails to produce societies.
func DefaultCharters(n int) []Charter {
	base := []Charter{
		{Ideology: "Communal Harmony", Values: []string{"Cooperation", "Sharing", "Peace"}},
		{Ideology: "Meritocratic Progress", Values: []string{"Ambition", "Innovation", "Excellence"}},
		{Ideology: "Traditional Order", Values: []string{"Heritage", "Stability", "Loyalty"}},
		{Ideology: "Free Wanderers", Values: []string{"Liberty", "Curiosity", "Self-reliance"}},
	}
	out := make([]Charter, n)
	for i := range out {
		if i < len(base) {
			out[i] = base[i]
			continue
		}
		out[i] = Charter{Ideology: "Unknown", Values: []string{"Survival", "Community", "Progress"}}
	}
	return out
}
