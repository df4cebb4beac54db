package selection

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

// Reducer holds the class selection for one class-selection stage. Selected
// names are always a subset of the suspected classes it was built from.
type Reducer struct {
	order     []string
	universe  sets.Set[string]
	selected  sets.Set[string]
	selectAll bool
}

// New returns an empty selection over classes.
func New(classes []model.SuspectedClass) *Reducer {
	r := &Reducer{
		universe: sets.New[string](),
		selected: sets.New[string](),
	}
	for _, c := range classes {
		if r.universe.Has(c.Class) {
			continue
		}
		r.universe.Insert(c.Class)
		r.order = append(r.order, c.Class)
	}
	return r
}

// ToggleAll selects every class when checked, or none otherwise.
func (r *Reducer) ToggleAll(checked bool) {
	if checked {
		r.selected = r.universe.Clone()
	} else {
		r.selected = sets.New[string]()
	}
	r.selectAll = checked
}

// ToggleOne checks or unchecks a single class. Unchecking always clears the
// select-all flag. Checking never sets it, even when every class ends up
// selected. Names outside the suspected classes are ignored.
func (r *Reducer) ToggleOne(name string, checked bool) {
	if !r.universe.Has(name) {
		return
	}
	if checked {
		r.selected.Insert(name)
		return
	}
	r.selected.Delete(name)
	r.selectAll = false
}

// Classes returns the selectable class names in backend order.
func (r *Reducer) Classes() []string {
	return append([]string(nil), r.order...)
}

// State returns a snapshot that later toggles do not affect.
func (r *Reducer) State() State {
	names := make([]string, 0, r.selected.Len())
	for _, n := range r.order {
		if r.selected.Has(n) {
			names = append(names, n)
		}
	}
	return State{selected: names, set: r.selected.Clone(), selectAll: r.selectAll}
}

// State is an immutable view of a selection.
type State struct {
	selected  []string
	set       sets.Set[string]
	selectAll bool
}

// Selected returns the selected class names in backend order.
func (s State) Selected() []string {
	return append([]string(nil), s.selected...)
}

func (s State) SelectAll() bool { return s.selectAll }

func (s State) Len() int { return len(s.selected) }

func (s State) Has(name string) bool { return s.set.Has(name) }
