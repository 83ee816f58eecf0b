package domains

import (
	"reflect"
	"testing"
)

func TestClassify_SingleDomain(t *testing.T) {
	c := NewClassifier(nil)

	got := c.Classify("Is the E46 M3 reliable as a daily driver?")
	if !reflect.DeepEqual(got, []string{Reliability}) {
		t.Errorf("Classify = %v, want [reliability]", got)
	}
}

func TestClassify_MultipleDomains(t *testing.T) {
	c := NewClassifier(nil)

	got := c.Classify("What horsepower gains can I expect from a stage 2 tune, and are there known issues?")
	want := []string{Modifications, Performance, Reliability}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify = %v, want %v", got, want)
	}
}

func TestClassify_OrderIsStable(t *testing.T) {
	c := NewClassifier(nil)

	// Reliability keyword appears before the performance keyword in the
	// text, but output order follows the fixed vocabulary order.
	got := c.Classify("known issues and dyno numbers please")
	want := []string{Performance, Reliability}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify = %v, want %v", got, want)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := NewClassifier(nil)

	if got := c.Classify("hello there"); len(got) != 0 {
		t.Errorf("Classify(greeting) = %v, want empty", got)
	}
	if got := c.Classify(""); len(got) != 0 {
		t.Errorf("Classify(empty) = %v, want empty", got)
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := NewClassifier(nil)

	// "hp" must not match inside an unrelated word.
	if got := c.Classify("the alphp sensor"); len(got) != 0 {
		t.Errorf("Classify = %v, want no match for embedded hp", got)
	}
	if got := c.Classify("it makes 400 hp stock"); !reflect.DeepEqual(got, []string{Performance}) {
		t.Errorf("Classify = %v, want [performance]", got)
	}
}

func TestClassify_Overrides(t *testing.T) {
	c := NewClassifier(map[string][]string{
		Events: {"weekend plans"},
	})

	if got := c.Classify("car show this weekend"); len(got) != 0 {
		t.Errorf("overridden events keywords should not match default phrases, got %v", got)
	}
	if got := c.Classify("any weekend plans?"); !reflect.DeepEqual(got, []string{Events}) {
		t.Errorf("Classify = %v, want [events]", got)
	}
}

func TestClassify_IsPure(t *testing.T) {
	c := NewClassifier(nil)
	text := "compare lap times for the gt3 vs gt4"

	first := c.Classify(text)
	for range 10 {
		if got := c.Classify(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("Classify not deterministic: %v vs %v", got, first)
		}
	}
}
