package export

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/store"
)

type Mode int

const (
	// UseSelectedEntries exports the listed entries in list order.
	UseSelectedEntries Mode = iota
	// AllOfTypeExceptSelected exports every object of the selected kind not in the list.
	AllOfTypeExceptSelected
)

func (m Mode) String() string {
	switch m {
	case UseSelectedEntries:
		return "selected"
	case AllOfTypeExceptSelected:
		return "all-except"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

var (
	ErrDuplicate = errors.New("entry already selected")
	ErrWrongKind = errors.New("entry kind does not match the selection")
)

// Entry is one object to export.
type Entry struct {
	ID   rosen.ID        `json:"id"`
	Kind rosen.GraphKind `json:"kind"`
	Name string          `json:"name,omitempty"`
}

// Selection decides which objects an export run covers.
type Selection struct {
	lister  store.Lister
	mode    Mode
	kind    rosen.GraphKind
	entries []Entry
}

func NewSelection(lister store.Lister) *Selection {
	return &Selection{lister: lister}
}

func (s *Selection) Mode() (Mode, rosen.GraphKind) { return s.mode, s.kind }

// SetMode switches the mode. AllOfTypeExceptSelected needs a kind and drops listed entries of
// other kinds.
func (s *Selection) SetMode(mode Mode, kind rosen.GraphKind) error {
	if mode == UseSelectedEntries {
		kind = rosen.KindNone
	} else if kind == rosen.KindNone {
		return errors.Errorf("mode %s needs an object kind", mode)
	}
	s.mode = mode
	s.kind = kind
	if mode == AllOfTypeExceptSelected {
		s.KeepOnlyKind(kind)
	}
	return nil
}

func (s *Selection) Add(e Entry) error {
	if s.mode == AllOfTypeExceptSelected && e.Kind != s.kind {
		return errors.Wrapf(ErrWrongKind, "%s %d (selection is %s)", e.Kind, e.ID, s.kind)
	}
	if e.Kind == rosen.KindNone || e.ID <= 0 {
		return errors.Errorf("invalid entry %s %d", e.Kind, e.ID)
	}
	for _, o := range s.entries {
		if o.ID == e.ID && o.Kind == e.Kind {
			return errors.Wrapf(ErrDuplicate, "%s %d", e.Kind, e.ID)
		}
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *Selection) Remove(i int) error {
	if i < 0 || i >= len(s.entries) {
		return errors.Errorf("no entry %d", i)
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return nil
}

// Move moves the entry at from so that it ends up at index to.
func (s *Selection) Move(from, to int) error {
	if from < 0 || from >= len(s.entries) || to < 0 || to >= len(s.entries) {
		return errors.Errorf("cannot move entry %d to %d", from, to)
	}
	e := s.entries[from]
	s.entries = slices.Delete(s.entries, from, from+1)
	s.entries = slices.Insert(s.entries, to, e)
	return nil
}

func (s *Selection) KeepOnlyKind(kind rosen.GraphKind) {
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool { return e.Kind != kind })
}

func (s *Selection) Clear() { s.entries = nil }

// Listed returns the explicitly listed entries.
func (s *Selection) Listed() []Entry { return slices.Clone(s.entries) }

// Entries returns the objects to export, in export order. Entries without a name are named
// from the repository; an object that no longer exists keeps an empty name.
func (s *Selection) Entries() ([]Entry, error) {
	var res []Entry
	if s.mode == UseSelectedEntries {
		res = slices.Clone(s.entries)
		if s.lister == nil {
			return res, nil
		}
	} else {
		if s.lister == nil {
			return nil, store.ErrUnavailable
		}
		ids, err := s.lister.IDs(s.kind)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s ids", s.kind)
		}
		for _, id := range ids {
			excluded := slices.ContainsFunc(s.entries, func(e Entry) bool { return e.ID == id })
			if !excluded {
				res = append(res, Entry{ID: id, Kind: s.kind})
			}
		}
	}
	for i := range res {
		if res[i].Name != "" {
			continue
		}
		name, err := s.lister.ObjectName(res[i].Kind, res[i].ID)
		if err != nil && !store.IsNotFound(err) {
			return nil, errors.Wrapf(err, "name %s %d", res[i].Kind, res[i].ID)
		}
		res[i].Name = name
	}
	return res, nil
}

func (s *Selection) Count() (int, error) {
	entries, err := s.Entries()
	return len(entries), err
}
