package feed

import (
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  Hello   World  ", "hello world"},
		{"HELLO\n\tWORLD", "hello world"},
		{"<p>Hello <b>World</b></p>", "hello world"},
		{"", ""},
		{"<div></div>", ""},
	}

	for _, test := range tests {
		result := NormalizeText(test.input)
		if result != test.expected {
			t.Errorf("Expected NormalizeText(%q) = %q, got %q", test.input, test.expected, result)
		}
	}
}

func TestFingerprintBodyIdentity(t *testing.T) {
	// The body is the identity: a retitled item keeps its fingerprint.
	a := Fingerprint("Original Title", "https://example.com/a", "Some article body")
	b := Fingerprint("Fixed Title", "https://example.com/a", "Some article body")

	if a != b {
		t.Error("Expected fingerprint to survive a title change when the body is unchanged")
	}

	c := Fingerprint("Original Title", "https://example.com/a", "A different body")
	if a == c {
		t.Error("Expected different bodies to produce different fingerprints")
	}
}

func TestFingerprintIgnoresCosmeticChanges(t *testing.T) {
	a := Fingerprint("", "", "Hello World")
	b := Fingerprint("", "", "  hello   WORLD  ")
	c := Fingerprint("", "", "<p>Hello <em>World</em></p>")

	if a != b {
		t.Error("Expected whitespace and case changes to preserve the fingerprint")
	}

	if a != c {
		t.Error("Expected markup changes to preserve the fingerprint")
	}
}

func TestFingerprintBodylessFallback(t *testing.T) {
	a := Fingerprint("Shared Title", "https://example.com/one", "")
	b := Fingerprint("Shared Title", "https://example.com/two", "")

	if a == b {
		t.Error("Expected body-less items with different links to differ")
	}

	c := Fingerprint("shared  TITLE", "https://example.com/one", "")
	if a != c {
		t.Error("Expected normalized titles to match in the fallback")
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Title", "https://example.com", "Body")
	b := Fingerprint("Title", "https://example.com", "Body")

	if a != b {
		t.Error("Expected fingerprint to be deterministic")
	}

	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
}
