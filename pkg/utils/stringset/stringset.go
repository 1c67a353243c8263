package stringset

import (
	"slices"

	"github.com/samber/lo"
)

type StringSet map[string]struct{}

func New(members ...string) StringSet {
	ss := make(StringSet, len(members))
	for _, m := range members {
		ss.Add(m)
	}
	return ss
}

func (ss StringSet) Add(s string) StringSet {
	ss[s] = struct{}{}
	return ss
}

func (ss StringSet) Contains(s string) bool {
	_, ok := ss[s]
	return ok
}

func (ss StringSet) AddAll(other StringSet) StringSet {
	for s := range other {
		ss.Add(s)
	}
	return ss
}

func (ss StringSet) Union(other StringSet) StringSet {
	r := make(StringSet, len(ss)+len(other))
	return r.AddAll(ss).AddAll(other)
}

func (ss StringSet) ContainsAny(members ...string) bool {
	for _, m := range members {
		if ss.Contains(m) {
			return true
		}
	}
	return false
}

func (ss StringSet) IsSubsetOf(other StringSet) bool {
	for s := range ss {
		if !other.Contains(s) {
			return false
		}
	}
	return true
}

func (ss StringSet) Copy() StringSet {
	return make(StringSet, len(ss)).AddAll(ss)
}

// Sorted returns the members in lexicographic order
func (ss StringSet) Sorted() []string {
	r := lo.Keys(ss)
	slices.Sort(r)
	return r
}
