// grouping.go -- Business-centric account tree built from raw directory records.
package connect

// WabaEntry is one WABA inside a business group.
type WabaEntry struct {
	WabaID            string             `json:"waba_id"`
	WabaName          string             `json:"waba_name"`
	BusinessAccountID string             `json:"business_account_id"`
	PhoneNumbers      []PhoneNumber      `json:"phone_numbers"`
	Verification      VerificationResult `json:"verification"`
}

// BusinessGroup is every WABA sharing one business display name.
type BusinessGroup struct {
	BusinessName string      `json:"business_name"`
	Wabas        []WabaEntry `json:"wabas"`
}

// entryRef locates a WabaEntry inside Tree.Groups.
type entryRef struct {
	group int
	waba  int
}

// Tree is the grouped view of one directory fetch.
// Each phone number id appears in exactly one WabaEntry.
// The indexes are derived from Groups and rebuilt on demand, so a Tree decoded
// from JSON is ready to use.
type Tree struct {
	Groups []BusinessGroup `json:"groups"`

	byAccount map[string][]entryRef
	byPhone   map[string]entryRef
}

// BuildTree groups raw records by BusinessName in order of first appearance,
// one WabaEntry per record. A phone number id already placed in the tree is
// dropped from later records. Each entry takes the verification result of its
// BusinessAccountID; ids without a result are treated as unverified.
func BuildTree(accounts []BusinessAccount, verifications []Verification) *Tree {
	results := make(map[string]VerificationResult, len(verifications))
	for _, v := range verifications {
		results[v.BusinessAccountID] = v.Result
	}

	t := &Tree{Groups: []BusinessGroup{}}
	groupIdx := make(map[string]int)
	placed := make(map[string]struct{})

	for _, acc := range accounts {
		gi, ok := groupIdx[acc.BusinessName]
		if !ok {
			gi = len(t.Groups)
			groupIdx[acc.BusinessName] = gi
			t.Groups = append(t.Groups, BusinessGroup{BusinessName: acc.BusinessName})
		}

		phones := make([]PhoneNumber, 0, len(acc.PhoneNumbers))
		for _, p := range acc.PhoneNumbers {
			if _, dup := placed[p.ID]; dup {
				continue
			}
			placed[p.ID] = struct{}{}
			phones = append(phones, p)
		}

		t.Groups[gi].Wabas = append(t.Groups[gi].Wabas, WabaEntry{
			WabaID:            acc.WabaID,
			WabaName:          acc.WabaName,
			BusinessAccountID: acc.BusinessAccountID,
			PhoneNumbers:      phones,
			Verification:      results[acc.BusinessAccountID],
		})
	}

	t.reindex()
	return t
}

// MergeVerification replaces the Verification of every entry whose
// BusinessAccountID has a new result. Nothing else in the tree changes.
func (t *Tree) MergeVerification(verifications []Verification) {
	t.ensureIndex()
	for _, v := range verifications {
		for _, ref := range t.byAccount[v.BusinessAccountID] {
			t.Groups[ref.group].Wabas[ref.waba].Verification = v.Result
		}
	}
}

// Lookup returns the group and entry owning phoneNumberID.
func (t *Tree) Lookup(phoneNumberID string) (*BusinessGroup, *WabaEntry, bool) {
	t.ensureIndex()
	ref, ok := t.byPhone[phoneNumberID]
	if !ok {
		return nil, nil, false
	}
	g := &t.Groups[ref.group]
	return g, &g.Wabas[ref.waba], true
}

// PhoneNumberIDs returns every phone number id in tree order.
func (t *Tree) PhoneNumberIDs() []string {
	var ids []string
	for _, g := range t.Groups {
		for _, w := range g.Wabas {
			for _, p := range w.PhoneNumbers {
				ids = append(ids, p.ID)
			}
		}
	}
	return ids
}

func (t *Tree) ensureIndex() {
	if t.byPhone == nil || t.byAccount == nil {
		t.reindex()
	}
}

func (t *Tree) reindex() {
	t.byAccount = make(map[string][]entryRef)
	t.byPhone = make(map[string]entryRef)
	for gi, g := range t.Groups {
		for wi, w := range g.Wabas {
			ref := entryRef{group: gi, waba: wi}
			t.byAccount[w.BusinessAccountID] = append(t.byAccount[w.BusinessAccountID], ref)
			for _, p := range w.PhoneNumbers {
				t.byPhone[p.ID] = ref
			}
		}
	}
}

// DistinctBusinessAccountIDs returns each BusinessAccountID once, in order of first appearance.
func DistinctBusinessAccountIDs(accounts []BusinessAccount) []string {
	seen := make(map[string]struct{}, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if _, ok := seen[acc.BusinessAccountID]; ok {
			continue
		}
		seen[acc.BusinessAccountID] = struct{}{}
		ids = append(ids, acc.BusinessAccountID)
	}
	return ids
}
