package orders

// Selection tracks which orders are checked for a bulk action. ToggleAll
// selects or clears the whole filtered set; Toggle flips one row. Rows
// deselected while select-all is on stay deselected.
type Selection struct {
	all   bool
	ids   map[string]struct{}
	order []string
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// ToggleAll selects every id in filtered, or clears the selection when
// select-all is already on.
func (s *Selection) ToggleAll(filtered []string) {
	if s.all {
		s.clear()
		return
	}
	s.clear()
	s.all = true
	for _, id := range filtered {
		s.add(id)
	}
}

// Toggle flips id. It does not change the select-all flag.
func (s *Selection) Toggle(id string) {
	if _, ok := s.ids[id]; ok {
		s.remove(id)
		return
	}
	s.add(id)
}

func (s *Selection) Selected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// AllActive reports whether select-all is on.
func (s *Selection) AllActive() bool {
	return s.all
}

// IDs returns the selected ids in the order they were selected.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Selection) Len() int {
	return len(s.order)
}

func (s *Selection) add(id string) {
	if id == "" {
		return
	}
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Selection) remove(id string) {
	delete(s.ids, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Selection) clear() {
	s.all = false
	s.ids = make(map[string]struct{})
	s.order = nil
}
