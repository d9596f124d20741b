package service

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{" Reporter@Example.AE ", "reporter@example.ae", true},
		{"invalid@", "", false},
		{"user@-bad-.com", "", false},
		{"user@localhost", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeEmail(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("normalizeEmail(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizePhoneDefaultsToUAE(t *testing.T) {
	if got := normalizePhone("04 323 4567", ""); got != "+97143234567" {
		t.Fatalf("expected UAE landline in E164, got %q", got)
	}
	if got := normalizePhone("+1 415 555 1234", "AE"); got != "+14155551234" {
		t.Fatalf("expected international number kept, got %q", got)
	}
	if got := normalizePhone("12345", "AE"); got != "" {
		t.Fatalf("expected invalid number to be dropped, got %q", got)
	}
}

func TestNormalizeWebsiteStripsTracking(t *testing.T) {
	got := normalizeWebsite("http://visa.example.ae/?utm_source=ads&ref=1")
	if got != "https://visa.example.ae/?ref=1" {
		t.Fatalf("unexpected website %q", got)
	}
	if normalizeWebsite("not a url") != "" {
		t.Fatalf("expected empty result for invalid url")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	var verr ValidationError
	verr.add("issueType", "is required")
	verr.add("companyName", "is required")
	verr.add("companyName", "ignored duplicate")

	err := verr.err()
	var target ValidationError
	if !errors.As(err, &target) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if err.Error() != "validation failed: companyName: is required; issueType: is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	var empty ValidationError
	if empty.err() != nil {
		t.Fatalf("expected nil error without fields")
	}
}
