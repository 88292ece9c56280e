package editor

// Selection operations are pure UI state: local only, never touching the
// backing store or history.

// Select replaces the selection with a single segment id.
func (e *Engine) Select(id string) {
	if e.indexOf(id) < 0 {
		return
	}
	e.selection = map[string]struct{}{id: {}}
}

// ToggleSelect adds or removes one id from a multi-selection.
func (e *Engine) ToggleSelect(id string) {
	if e.indexOf(id) < 0 {
		return
	}
	if _, ok := e.selection[id]; ok {
		delete(e.selection, id)
		return
	}
	e.selection[id] = struct{}{}
}

// SelectAll selects every segment in the collection.
func (e *Engine) SelectAll() {
	e.selection = make(map[string]struct{}, len(e.segments))
	for i := range e.segments {
		e.selection[e.segments[i].ID] = struct{}{}
	}
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.selection = make(map[string]struct{})
}

// SelectRange selects the inclusive contiguous span between two ids by
// current list position, not time; (A, C) and (C, A) produce the same set.
// If either id is absent the selection becomes empty, not unchanged.
func (e *Engine) SelectRange(startID, endID string) {
	from := e.indexOf(startID)
	to := e.indexOf(endID)
	if from < 0 || to < 0 {
		e.selection = make(map[string]struct{})
		return
	}
	if from > to {
		from, to = to, from
	}
	e.selection = make(map[string]struct{}, to-from+1)
	for i := from; i <= to; i++ {
		e.selection[e.segments[i].ID] = struct{}{}
	}
}

// Selected reports whether the given segment is selected.
func (e *Engine) Selected(id string) bool {
	_, ok := e.selection[id]
	return ok
}

// SelectedIDs returns the selected ids in current list order.
func (e *Engine) SelectedIDs() []string {
	out := make([]string, 0, len(e.selection))
	for i := range e.segments {
		if _, ok := e.selection[e.segments[i].ID]; ok {
			out = append(out, e.segments[i].ID)
		}
	}
	return out
}
