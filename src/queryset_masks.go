package queries

import (
	"fmt"
	"strings"
)

// FieldMask is a tree of field selections used by Fields and ExcludeFields.
//
// A leaf names a concrete field on the model at that level; a child mask
// scopes selections to a related model. Repeated additions union into the
// same tree.
type FieldMask struct {
	leaves   map[string]struct{}
	children map[string]*FieldMask
}

func NewFieldMask() *FieldMask {
	return &FieldMask{
		leaves:   make(map[string]struct{}),
		children: make(map[string]*FieldMask),
	}
}

func (m *FieldMask) Clone() *FieldMask {
	if m == nil {
		return nil
	}
	var c = NewFieldMask()
	for k := range m.leaves {
		c.leaves[k] = struct{}{}
	}
	for k, v := range m.children {
		c.children[k] = v.Clone()
	}
	return c
}

// AddPath adds a `.`-separated path to the mask; all parts except the
// last become child masks.
func (m *FieldMask) AddPath(path string) {
	var parts = strings.Split(path, ".")
	var cur = m
	for i, part := range parts {
		if i == len(parts)-1 {
			cur.leaves[part] = struct{}{}
			return
		}
		var child, ok = cur.children[part]
		if !ok {
			child = NewFieldMask()
			cur.children[part] = child
		}
		cur = child
	}
}

// Add unions loosely typed selections into the mask.
//
// Accepted kinds: a path string, a []string of paths, or a
// map[string]any where a nil/bool value marks a leaf and a nested map,
// string or []string recurses into a child mask.
func (m *FieldMask) Add(selections ...any) {
	for _, sel := range selections {
		switch v := sel.(type) {
		case string:
			m.AddPath(v)
		case []string:
			for _, s := range v {
				m.AddPath(s)
			}
		case map[string]any:
			for key, val := range v {
				switch val := val.(type) {
				case nil, bool:
					m.leaves[key] = struct{}{}
				default:
					var child, ok = m.children[key]
					if !ok {
						child = NewFieldMask()
						m.children[key] = child
					}
					child.Add(val)
				}
			}
		default:
			panic(fmt.Errorf("unsupported field selection type %T", sel))
		}
	}
}

func (m *FieldMask) IsEmpty() bool {
	return m == nil || (len(m.leaves) == 0 && len(m.children) == 0)
}

// Has reports whether the field name is a leaf at this level.
func (m *FieldMask) Has(name string) bool {
	if m == nil {
		return false
	}
	var _, ok = m.leaves[name]
	return ok
}

// Child returns the nested mask for a relation name, or nil.
func (m *FieldMask) Child(name string) *FieldMask {
	if m == nil {
		return nil
	}
	return m.children[name]
}

// ChildAt descends the mask along a relation chain, returning nil as soon
// as the chain leaves the masked tree.
func (m *FieldMask) ChildAt(chain []string) *FieldMask {
	var cur = m
	for _, part := range chain {
		if cur == nil {
			return nil
		}
		cur = cur.Child(part)
	}
	return cur
}

// Leaves returns the leaf names at this level.
func (m *FieldMask) Leaves() []string {
	if m == nil {
		return nil
	}
	var out = make([]string, 0, len(m.leaves))
	for k := range m.leaves {
		out = append(out, k)
	}
	return out
}

// covers reports whether an include mask keeps the given field at this
// level. A mask with no leaves at a level keeps every field of that level.
func (m *FieldMask) covers(name string) bool {
	if m == nil || len(m.leaves) == 0 {
		return true
	}
	var _, ok = m.leaves[name]
	return ok
}
