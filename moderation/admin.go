package moderation

// AdminSet is the set of identities allowed to issue privileged commands.
// Populated once at startup; read-only afterwards, so lookups need no
// locking.
type AdminSet struct {
	ids map[int64]bool
}

func NewAdminSet(ids []int64) AdminSet {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return AdminSet{ids: m}
}

func (s AdminSet) Contains(id int64) bool {
	return s.ids[id]
}

func (s AdminSet) Size() int {
	return len(s.ids)
}
