package schema

import "sort"

// Selection marks which fields of an input's schema a process consumes.
// It is sparse: a missing path is not selected.
type Selection map[string]bool

// Selected reports whether path is marked.
func (s Selection) Selected(path string) bool {
	return s[path]
}

// Toggle marks or unmarks path. Selecting a path also clears every
// descendant, since the parent now covers them.
func (s Selection) Toggle(path string, on bool) {
	s[path] = on
	if !on {
		return
	}
	for key := range s {
		if IsDescendant(key, path) {
			s[key] = false
		}
	}
}

// Paths returns the selected paths in lexical order.
func (s Selection) Paths() []string {
	var out []string
	for k, v := range s {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Covered reports whether path is selected directly or through an ancestor.
func (s Selection) Covered(path string) bool {
	for k, v := range s {
		if v && (k == path || IsDescendant(path, k)) {
			return true
		}
	}
	return false
}

// Prune drops entries that no longer resolve against d, and false entries.
// It returns the number of removed keys.
func (s Selection) Prune(d *Descriptor) int {
	removed := 0
	for k, v := range s {
		if _, ok := Lookup(d, k); !ok || !v {
			delete(s, k)
			removed++
		}
	}
	return removed
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	c := make(Selection, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}
