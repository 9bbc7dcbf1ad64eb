package template

import (
	"reflect"
	"testing"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	got := Render("Hi {name}, pay {amount} by {due}", map[string]string{
		"name":   "Amy",
		"amount": "1,000",
		"due":    "2026-02-05",
	})
	want := "Hi Amy, pay 1,000 by 2026-02-05"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderIsCaseInsensitive(t *testing.T) {
	got := Render("Hi {Name}", map[string]string{"NAME": "Amy"})
	if got != "Hi Amy" {
		t.Fatalf("expected case-insensitive match, got %q", got)
	}
}

func TestRenderStripsUnsuppliedPlaceholders(t *testing.T) {
	got := Render("Call {phone} now", map[string]string{"name": "Amy"})
	if got != "Call  now" {
		t.Fatalf("expected unsupplied placeholder removed, got %q", got)
	}
}

func TestRenderEmptyTemplate(t *testing.T) {
	if got := Render("", map[string]string{"a": "b"}); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		tmpl    string
		wantErr bool
	}{
		{"balanced", "Hi {name}, rent due {due}", false},
		{"no placeholders", "plain text", false},
		{"unclosed", "Hi {name", true},
		{"unmatched close", "Hi name}", true},
		{"nested", "Hi {{name}}", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.tmpl)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVariablesExtraction(t *testing.T) {
	got := Variables("Hi {Name}, {amount} due {due}. Again: {name}")
	want := []string{"name", "amount", "due"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
