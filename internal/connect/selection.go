// selection.go -- The user's chosen phone numbers and the verification gate derived from them.
package connect

import (
	"encoding/json"
	"sort"
)

// Selection is a set of phone number ids. The zero value is empty and ready to use.
type Selection struct {
	ids map[string]struct{}
}

// Toggle flips membership of phoneNumberID and reports whether it is now selected.
func (s *Selection) Toggle(phoneNumberID string) bool {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if _, ok := s.ids[phoneNumberID]; ok {
		delete(s.ids, phoneNumberID)
		return false
	}
	s.ids[phoneNumberID] = struct{}{}
	return true
}

// Has reports whether phoneNumberID is selected.
func (s *Selection) Has(phoneNumberID string) bool {
	_, ok := s.ids[phoneNumberID]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int { return len(s.ids) }

// Clear empties the selection.
func (s *Selection) Clear() { s.ids = nil }

// IDs returns the selected ids sorted.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsAnySelectedUnverified is true iff a selected number belongs to an entry whose
// verification did not succeed. Ids missing from the tree count as unverified.
func (s *Selection) IsAnySelectedUnverified(t *Tree) bool {
	for id := range s.ids {
		_, w, ok := t.Lookup(id)
		if !ok || !w.Verification.Success {
			return true
		}
	}
	return false
}

// UnverifiedBusinessAccountIDs returns the distinct business account ids of entries
// that own at least one selected number and are not verified, in tree order.
func (s *Selection) UnverifiedBusinessAccountIDs(t *Tree) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, g := range t.Groups {
		for _, w := range g.Wabas {
			if w.Verification.Success || !s.ownsAny(w) {
				continue
			}
			if _, ok := seen[w.BusinessAccountID]; ok {
				continue
			}
			seen[w.BusinessAccountID] = struct{}{}
			ids = append(ids, w.BusinessAccountID)
		}
	}
	return ids
}

// Numbers returns the selected numbers in tree order, display numbers normalised.
func (s *Selection) Numbers(t *Tree) []SelectedNumber {
	var out []SelectedNumber
	for _, g := range t.Groups {
		for _, w := range g.Wabas {
			for _, p := range w.PhoneNumbers {
				if !s.Has(p.ID) {
					continue
				}
				out = append(out, SelectedNumber{
					BusinessAccountID: w.BusinessAccountID,
					BusinessName:      g.BusinessName,
					WabaName:          w.WabaName,
					PhoneNumberID:     p.ID,
					PhoneNumber:       NormalizePhoneNumber(p.DisplayPhoneNumber),
				})
			}
		}
	}
	return out
}

// BusinessAccountIDs returns the distinct business account ids owning a selected number, in tree order.
func (s *Selection) BusinessAccountIDs(t *Tree) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, n := range s.Numbers(t) {
		if _, ok := seen[n.BusinessAccountID]; ok {
			continue
		}
		seen[n.BusinessAccountID] = struct{}{}
		ids = append(ids, n.BusinessAccountID)
	}
	return ids
}

func (s *Selection) ownsAny(w WabaEntry) bool {
	for _, p := range w.PhoneNumbers {
		if s.Has(p.ID) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the selection as a sorted array of ids.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	s.ids = nil
	for _, id := range ids {
		if !s.Has(id) {
			s.Toggle(id)
		}
	}
	return nil
}
