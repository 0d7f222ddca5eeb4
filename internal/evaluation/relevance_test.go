package evaluation

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		raw  string
		want Code
	}{
		{"1", CodeOK},
		{"2", CodeGood},
		{"3", CodeJunk},
		{"0", CodeInvalid},
		{"9", CodeInvalid},
		{"", CodeInvalid},
		{"ok", CodeInvalid},
		{" 1", CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			if got := ParseCode(tt.raw); got != tt.want {
				t.Errorf("ParseCode(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCodeFromInt(t *testing.T) {
	if CodeFromInt(2) != CodeGood {
		t.Error("CodeFromInt(2) != CodeGood")
	}
	if CodeFromInt(4) != CodeInvalid {
		t.Error("CodeFromInt(4) should be invalid")
	}
	if CodeJunk.Value() != "3" || CodeJunk.String() != "junk" {
		t.Errorf("CodeJunk = %s/%s", CodeJunk.Value(), CodeJunk)
	}
}

func TestClassify_Scenario(t *testing.T) {
	sets := Classify(RelevanceMap{"x": "1", "y": "2", "z": "9"})

	if !sets.OK.Has("x") || sets.OK.Len() != 1 {
		t.Errorf("ok = %v, want {x}", sets.OK.Sorted())
	}
	if !sets.Good.Has("y") || sets.Good.Len() != 1 {
		t.Errorf("good = %v, want {y}", sets.Good.Sorted())
	}
	if sets.Junk.Len() != 0 {
		t.Errorf("junk = %v, want {}", sets.Junk.Sorted())
	}

	want := RelevanceCounts{Total: 3, OK: 1, Good: 1, Junk: 0, Invalid: 1}
	if sets.Counts != want {
		t.Errorf("counts = %+v, want %+v", sets.Counts, want)
	}
	if len(sets.InvalidIDs) != 1 || sets.InvalidIDs[0] != "z" {
		t.Errorf("invalid ids = %v, want [z]", sets.InvalidIDs)
	}

	positive := sets.Positive()
	if positive.Len() != 2 || !positive.Has("x") || !positive.Has("y") {
		t.Errorf("positive = %v, want {x y}", positive.Sorted())
	}
}

func TestClassify_AllInvalidIsNotAnError(t *testing.T) {
	sets := Classify(RelevanceMap{"a": "7", "b": "junk"})
	if sets.Counts.Invalid != 2 || sets.Counts.Total != 2 {
		t.Errorf("counts = %+v", sets.Counts)
	}
	if sets.Positive().Len() != 0 {
		t.Error("expected no positives")
	}
}

func TestClassify_Disjointness(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	codes := []string{"1", "2", "3", "4", "", "x"}

	for i := 0; i < 200; i++ {
		m := make(RelevanceMap)
		n := r.IntN(40)
		for j := 0; j < n; j++ {
			m[fmt.Sprintf("id_%d", r.IntN(60))] = codes[r.IntN(len(codes))]
		}

		sets := Classify(m)

		if n := sets.OK.Intersect(sets.Good).Len(); n != 0 {
			t.Fatalf("case %d: ok ∩ good has %d members", i, n)
		}
		if n := sets.OK.Intersect(sets.Junk).Len(); n != 0 {
			t.Fatalf("case %d: ok ∩ junk has %d members", i, n)
		}
		if n := sets.Good.Intersect(sets.Junk).Len(); n != 0 {
			t.Fatalf("case %d: good ∩ junk has %d members", i, n)
		}

		union := sets.OK.Union(sets.Good).Union(sets.Junk)
		if union.Len() != sets.Counts.Total-sets.Counts.Invalid {
			t.Fatalf("case %d: |union| = %d, total-invalid = %d",
				i, union.Len(), sets.Counts.Total-sets.Counts.Invalid)
		}
	}
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	m := RelevanceMap{"a": "1", "b": "bad"}
	_ = Classify(m)
	if len(m) != 2 || m["b"] != "bad" {
		t.Errorf("input mutated: %v", m)
	}
}

func TestIDSetOperations(t *testing.T) {
	a := NewIDSet("1", "2", "3")
	b := NewIDSet("3", "4")

	if got := a.Union(b).Sorted(); len(got) != 4 {
		t.Errorf("union = %v", got)
	}
	if got := a.Intersect(b).Sorted(); len(got) != 1 || got[0] != "3" {
		t.Errorf("intersect = %v", got)
	}
	if got := a.Difference(b).Sorted(); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("difference = %v", got)
	}
	if a.Len() != 3 {
		t.Error("operations must not mutate the receiver")
	}
}
