package evidence

import (
	"slices"
	"testing"
)

func mustClassifier(t *testing.T, overrides map[string][]string) *Classifier {
	t.Helper()
	c, err := NewClassifier(overrides)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassify_Reliability(t *testing.T) {
	c := mustClassifier(t, nil)

	for _, msg := range []string{
		"Is the N54 reliable at 450whp?",
		"what are the known issues with the EA888 gen 3",
		"how long does a stock clutch last with a stage 1 tune",
		"do these engines blow up with bigger turbos",
	} {
		got := c.Classify(msg)
		if !slices.Contains(got, CategoryReliability) {
			t.Errorf("Classify(%q) = %v, want reliability", msg, got)
		}
	}
}

func TestClassify_QuantitativeGains(t *testing.T) {
	c := mustClassifier(t, nil)

	for _, msg := range []string{
		"how much hp does a downpipe add",
		"will an intake gain torque on a stock tune",
		"is 400 hp realistic on pump gas",
	} {
		got := c.Classify(msg)
		if !slices.Contains(got, CategoryQuantGains) {
			t.Errorf("Classify(%q) = %v, want quantitative_gains", msg, got)
		}
	}
}

func TestClassify_Compliance(t *testing.T) {
	c := mustClassifier(t, nil)

	for _, msg := range []string{
		"is a catless downpipe street legal in California",
		"will this exhaust pass emissions",
		"is a cat delete illegal",
	} {
		got := c.Classify(msg)
		if !slices.Contains(got, CategoryCompliance) {
			t.Errorf("Classify(%q) = %v, want compliance", msg, got)
		}
	}
}

func TestClassify_LapTimes(t *testing.T) {
	c := mustClassifier(t, nil)

	for _, msg := range []string{
		"what lap time can a GT4 do at Laguna Seca",
		"Nurburgring time for the new M2?",
		"how fast is it around a track compared to a Cayman",
	} {
		got := c.Classify(msg)
		if !slices.Contains(got, CategoryLapTimes) {
			t.Errorf("Classify(%q) = %v, want lap_times", msg, got)
		}
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := mustClassifier(t, nil)

	for _, msg := range []string{
		"what color options does the GR86 come in",
		"recommend a good detailing spray",
		"when is the next cars and coffee",
	} {
		if got := c.Classify(msg); len(got) != 0 {
			t.Errorf("Classify(%q) = %v, want no categories", msg, got)
		}
	}
}

func TestClassify_MultipleCategoriesInOrder(t *testing.T) {
	c := mustClassifier(t, nil)

	// Hits reliability, quantitative gains, and lap times.
	msg := "how much hp can I add before reliability suffers, and what lap time would it run"
	got := c.Classify(msg)

	want := []string{CategoryReliability, CategoryQuantGains, CategoryLapTimes}
	if !slices.Equal(got, want) {
		t.Errorf("Classify(%q) = %v, want %v", msg, got, want)
	}
}

func TestClassify_OverrideReplacesCategory(t *testing.T) {
	c := mustClassifier(t, map[string][]string{
		CategoryReliability: {`(?i)\bgremlins\b`},
	})

	if got := c.Classify("does this car have electrical gremlins"); !slices.Contains(got, CategoryReliability) {
		t.Errorf("override pattern should match, got %v", got)
	}
	// Default reliability patterns are gone once overridden.
	if got := c.Classify("is it reliable"); slices.Contains(got, CategoryReliability) {
		t.Errorf("default pattern should be replaced, got %v", got)
	}
	// Other categories keep their defaults.
	if got := c.Classify("is a cat delete illegal"); !slices.Contains(got, CategoryCompliance) {
		t.Errorf("compliance defaults should survive, got %v", got)
	}
}

func TestNewClassifier_InvalidPattern(t *testing.T) {
	_, err := NewClassifier(map[string][]string{
		CategoryLapTimes: {`([unclosed`},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
