package language_test

import (
	"testing"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want language.Tag
	}{
		{"empty", "", language.English},
		{"whitespace only", "   \t  ", language.English},
		{"no letters", "1234 !!!", language.English},
		{"plain english", "Hello, how can I help you today?", language.English},
		{"devanagari dominant", "नमस्ते आप कैसे हैं namaste ji", language.Hindi},
		{"pure hindi", "मुझे एक टेबल बुक करनी है", language.Hindi},
		{"hinglish keywords", "namaste bhai mujhe booking chahiye aaj", language.Mixed},
		{"single keyword stays english", "ji please book a table for tonight", language.English},
		{"mixed script", "क्या aap free hain kal?", language.Mixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := language.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{
		"Hello there",
		"नमस्ते",
		"kya haal hai bhai",
		"book a table क्या",
	}
	for _, in := range inputs {
		first := language.Classify(in)
		for i := 0; i < 10; i++ {
			if got := language.Classify(in); got != first {
				t.Fatalf("Classify(%q) not deterministic: %q then %q", in, first, got)
			}
		}
	}
}

func TestClassifyDevanagariDominantIgnoresKeywords(t *testing.T) {
	// Majority Devanagari wins even with several romanized keywords present.
	text := "नमस्ते आप कैसे हैं मदद चाहिए namaste ji"
	if got := language.Classify(text); got != language.Hindi {
		t.Errorf("Classify = %q, want %q", got, language.Hindi)
	}
}

func TestClassifyDilutedMixed(t *testing.T) {
	// 3 keyword hits, Latin share ~44%, Devanagari share ~5% (digits make up
	// the rest). Falls through the English rules into the Hinglish band.
	text := "namaste kaise madad 1234567890123456789 कब"
	if got := language.Classify(text); got != language.Mixed {
		t.Errorf("Classify(%q) = %q, want %q", text, got, language.Mixed)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"hi", language.Hindi},
		{"HI", language.Hindi},
		{"mixed", language.Mixed},
		{"en", language.English},
		{"auto", language.English},
		{"", language.English},
		{"klingon", language.English},
	}
	for _, tt := range tests {
		if got := language.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsAuto(t *testing.T) {
	if !language.IsAuto("") || !language.IsAuto("auto") || !language.IsAuto("AUTO") {
		t.Error("expected empty and auto hints to be auto")
	}
	if language.IsAuto("hi") {
		t.Error("hi is not an auto hint")
	}
}

func TestPromptTables(t *testing.T) {
	for _, tag := range []language.Tag{language.English, language.Hindi, language.Mixed} {
		if language.Prompt(tag) == "" {
			t.Errorf("empty prompt for %q", tag)
		}
		if language.Greeting(tag) == "" {
			t.Errorf("empty greeting for %q", tag)
		}
		if language.Fallback(tag) == "" {
			t.Errorf("empty fallback for %q", tag)
		}
	}

	if language.Voice(language.Hindi) != "hi" {
		t.Error("hindi voice should be hi")
	}
	if language.Voice(language.Mixed) != "en" {
		t.Error("mixed speaks with the english voice")
	}
	if language.Voice(language.English) != "en" {
		t.Error("english voice should be en")
	}
}
