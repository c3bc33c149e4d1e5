package pagerange

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfmaster/pdferr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec  string
		total int
		want  []int
	}{
		{"1,3-5,8", 10, []int{1, 3, 4, 5, 8}},
		{"2-20", 10, []int{2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{" 1 , 2 - 3 ", 5, []int{1, 2, 3}},
		{"3,1,3,2-3", 5, []int{1, 2, 3}},
		{"0,11,12-15", 10, nil},
		{"7", 7, []int{7}},
		{"4-4", 9, []int{4}},
		{"05", 9, []int{5}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec, tt.total)
			if err != nil {
				t.Fatalf("Parse(%q, %d) error = %v", tt.spec, tt.total, err)
			}
			if diff := cmp.Diff(tt.want, got.Pages()); diff != "" {
				t.Fatalf("Parse(%q, %d) mismatch (-want +got):\n%s", tt.spec, tt.total, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, spec := range []string{"", "   ", "abc", "1,,2", ",1", "1-", "-3", "3-1", "1-2-3", "1.5", "+2", "all,1", "1;2"} {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec, 10)
			if err == nil {
				t.Fatalf("Parse(%q) expected error", spec)
			}
			if !errors.Is(err, pdferr.ErrParse) {
				t.Fatalf("Parse(%q) error = %v, want parse error", spec, err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	for _, spec := range []string{"all", "ALL", " All "} {
		got, err := Select(spec, 3)
		if err != nil {
			t.Fatalf("Select(%q) error = %v", spec, err)
		}
		if diff := cmp.Diff([]int{1, 2, 3}, got.Pages()); diff != "" {
			t.Fatalf("Select(%q) mismatch (-want +got):\n%s", spec, diff)
		}
	}
	got, err := Select("2", 3)
	if err != nil || !got.Contains(2) || got.Contains(1) || got.Len() != 1 {
		t.Fatalf("Select(\"2\") = %v, %v", got, err)
	}
}

func TestSetString(t *testing.T) {
	s, err := Parse("8,1,3-5,9,10", 10)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got, want := s.String(), "1,3-5,8-10"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"1", "3", "4", "5", "8", "9", "10"}, s.Strings()); diff != "" {
		t.Fatalf("Strings() mismatch (-want +got):\n%s", diff)
	}
	if !(Set{}).Empty() || All(0).Len() != 0 {
		t.Fatalf("empty sets should be empty")
	}
}

func TestPagesReturnsCopy(t *testing.T) {
	s := Of(5, 2, 4)
	p := s.Pages()
	p[0] = 99
	if !s.Contains(2) || s.Contains(99) {
		t.Fatalf("Pages() must not alias the set")
	}
}
