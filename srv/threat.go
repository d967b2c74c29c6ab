package srv

// threatTable accumulates per-attacker threat and resolves the aggro target
// deterministically: the highest strictly-positive score wins, and ties go
// to whoever was credited first. Entries keep first-credit order so the
// resolution does not depend on map iteration.
type threatTable struct {
	score map[string]int
	order []string
}

func newThreatTable() *threatTable {
	return &threatTable{score: make(map[string]int)}
}

// Add credits amount of threat, registering the attacker on first credit.
func (t *threatTable) Add(name string, amount int) {
	if _, ok := t.score[name]; !ok {
		t.order = append(t.order, name)
	}
	t.score[name] += amount
}

// Get returns the current threat for name, zero if absent.
func (t *threatTable) Get(name string) int {
	return t.score[name]
}

// Has reports whether name holds an entry, even a non-positive one.
func (t *threatTable) Has(name string) bool {
	_, ok := t.score[name]
	return ok
}

// Remove deletes name's entry.
func (t *threatTable) Remove(name string) {
	if _, ok := t.score[name]; !ok {
		return
	}
	delete(t.score, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Clear drops every entry.
func (t *threatTable) Clear() {
	t.score = make(map[string]int)
	t.order = nil
}

// Top returns the eligible entry with the highest positive threat, or
// ("", false) when none qualifies. eligible may be nil to consider all.
func (t *threatTable) Top(eligible func(name string) bool) (string, bool) {
	best := ""
	bestScore := 0
	for _, name := range t.order {
		score := t.score[name]
		if score <= 0 {
			continue
		}
		if eligible != nil && !eligible(name) {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	return best, best != ""
}
