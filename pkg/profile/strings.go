package profile

import (
	"github.com/dolthub/swiss"
)

// StringTable interns strings referenced by index from the other tables.
type StringTable struct {
	strings []string
	index   *swiss.Map[string, int32]
}

func NewStringTable(size int) *StringTable {
	if size < 1 {
		size = 1
	}
	return &StringTable{
		strings: make([]string, 0, size),
		index:   swiss.NewMap[string, int32](uint32(size)),
	}
}

// Intern returns the index of s, adding it if needed.
func (t *StringTable) Intern(s string) int32 {
	if i, ok := t.index.Get(s); ok {
		return i
	}
	i := int32(len(t.strings))
	t.strings = append(t.strings, s)
	t.index.Put(s, i)
	return i
}

// Get returns the string at index i, or an empty string for Null.
func (t *StringTable) Get(i int32) string {
	if i < 0 {
		return ""
	}
	return t.strings[i]
}

func (t *StringTable) Len() int { return len(t.strings) }
