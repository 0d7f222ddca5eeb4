package evaluation

import (
	"sort"
	"strconv"
)

// Code is a ground-truth relevance code.
type Code int

// Relevance codes as stored by the annotation store.
const (
	CodeInvalid Code = 0
	CodeOK      Code = 1
	CodeGood    Code = 2
	CodeJunk    Code = 3
)

// String returns the category name.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeGood:
		return "good"
	case CodeJunk:
		return "junk"
	default:
		return "invalid"
	}
}

// Value returns the canonical stored form ("1", "2", "3").
func (c Code) Value() string {
	return strconv.Itoa(int(c))
}

// ParseCode parses a stored relevance code ("1", "2" or "3"). Anything else
// is CodeInvalid.
func ParseCode(raw string) Code {
	switch raw {
	case "1":
		return CodeOK
	case "2":
		return CodeGood
	case "3":
		return CodeJunk
	default:
		return CodeInvalid
	}
}

// CodeFromInt converts the integer form of a relevance code.
func CodeFromInt(v int) Code {
	switch c := Code(v); c {
	case CodeOK, CodeGood, CodeJunk:
		return c
	default:
		return CodeInvalid
	}
}

// RelevanceMap maps item identifiers to raw relevance codes for one query.
type RelevanceMap map[string]string

// IDSet is a set of item identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is a member.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Union returns a new set holding the members of s and o.
func (s IDSet) Union(o IDSet) IDSet {
	out := make(IDSet, len(s)+len(o))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range o {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns a new set holding the members present in both.
func (s IDSet) Intersect(o IDSet) IDSet {
	small, large := s, o
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(IDSet)
	for id := range small {
		if large.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Difference returns a new set holding the members of s not in o.
func (s IDSet) Difference(o IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !o.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// RelevanceCounts summarises one classification.
type RelevanceCounts struct {
	Total   int `json:"total" yaml:"total"`
	OK      int `json:"ok" yaml:"ok"`
	Good    int `json:"good" yaml:"good"`
	Junk    int `json:"junk" yaml:"junk"`
	Invalid int `json:"invalid" yaml:"invalid"`
}

// RelevanceSets is the classified ground truth of one query. OK, Good and
// Junk are pairwise disjoint.
type RelevanceSets struct {
	OK         IDSet
	Good       IDSet
	Junk       IDSet
	Counts     RelevanceCounts
	InvalidIDs []string
}

// Positive returns OK ∪ Good, the set scored as relevant.
func (r RelevanceSets) Positive() IDSet {
	return r.OK.Union(r.Good)
}

// Classify partitions a relevance map into ok, good and junk sets.
// Entries with an unrecognised code are dropped and counted; they never
// cause an error.
func Classify(m RelevanceMap) RelevanceSets {
	sets := RelevanceSets{
		OK:   make(IDSet),
		Good: make(IDSet),
		Junk: make(IDSet),
	}
	sets.Counts.Total = len(m)

	for id, raw := range m {
		switch ParseCode(raw) {
		case CodeOK:
			sets.OK.Add(id)
			sets.Counts.OK++
		case CodeGood:
			sets.Good.Add(id)
			sets.Counts.Good++
		case CodeJunk:
			sets.Junk.Add(id)
			sets.Counts.Junk++
		default:
			sets.InvalidIDs = append(sets.InvalidIDs, id)
			sets.Counts.Invalid++
		}
	}
	sort.Strings(sets.InvalidIDs)

	return sets
}
