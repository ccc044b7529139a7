// Membership - the only way a blob's society reference and a society's
// member set change, so the two sides never drift apart.
package social

import "fmt"

// Member is an entity that can belong to at most one society.
type Member interface {
	MemberID() int
	CurrentSociety() (int, bool)
	SetSociety(id *int)
}

// Join moves m into the society with the given ID, leaving any previous one.
func (r *Registry) Join(m Member, societyID int) error {
	target, ok := r.index[societyID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSociety, societyID)
	}
	if prev, ok := m.CurrentSociety(); ok {
		if prev == societyID && target.HasMember(m.MemberID()) {
			return nil
		}
		if old, ok := r.index[prev]; ok {
			old.RemoveMember(m.MemberID())
		}
	}
	target.AddMember(m.MemberID())
	id := societyID
	m.SetSociety(&id)
	return nil
}

// Leave removes m from its society, if any.
func (r *Registry) Leave(m Member) {
	prev, ok := m.CurrentSociety()
	if !ok {
		return
	}
	if old, ok := r.index[prev]; ok {
		old.RemoveMember(m.MemberID())
	}
	m.SetSociety(nil)
}

// CheckMembership verifies that every member's society reference exists and
// lists it, and that every listed member points back at its society.
func (r *Registry) CheckMembership(members []Member) error {
	byID := make(map[int]Member, len(members))
	for _, m := range members {
		byID[m.MemberID()] = m
		sid, ok := m.CurrentSociety()
		if !ok {
			continue
		}
		s, exists := r.index[sid]
		if !exists {
			return fmt.Errorf("member %d references %w %d", m.MemberID(), ErrUnknownSociety, sid)
		}
		if !s.HasMember(m.MemberID()) {
			return fmt.Errorf("member %d missing from %s", m.MemberID(), s.Name())
		}
	}
	for _, s := range r.societies {
		for _, id := range s.Members {
			m, ok := byID[id]
			if !ok {
				return fmt.Errorf("%s lists unknown member %d", s.Name(), id)
			}
			if sid, ok := m.CurrentSociety(); !ok || sid != s.ID {
				return fmt.Errorf("%s lists member %d that belongs elsewhere", s.Name(), id)
			}
		}
	}
	return nil
}
