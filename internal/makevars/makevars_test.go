package makevars

import (
	"strings"
	"testing"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{"42", KindInt},
		{"0", KindInt},
		{"3.14", KindFloat},
		{"true", KindBool},
		{"FALSE", KindBool},
		{"hello", KindString},
		{"1.2.3", KindString},
		{"-5", KindString}, // negative numbers are not recognized, same as the Makefile convention here
		{"", KindString},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.raw); got != tt.want {
			t.Errorf("DetectKind(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestIsAssignment(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"NAME = teakit", true},
		{"NAME=teakit", true},
		{"VERSION := 1.2", true},
		{"with-dash = yes", true},
		{`QUOTED = "two words"`, true},
		{"not an assignment", false},
		{"= orphan", false},
		{"recipe:", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAssignment(tt.line); got != tt.want {
			t.Errorf("IsAssignment(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseAssignment(t *testing.T) {
	t.Run("simple assignment", func(t *testing.T) {
		a, err := ParseAssignment("WORKERS = 8")
		if err != nil {
			t.Fatalf("ParseAssignment() error = %v", err)
		}
		if a.Key != "WORKERS" || a.Raw != "8" || a.Kind != KindInt {
			t.Errorf("got %+v", a)
		}
		n, err := a.Int()
		if err != nil || n != 8 {
			t.Errorf("Int() = %d, %v", n, err)
		}
	})

	t.Run("colon-equals strips the colon from the key", func(t *testing.T) {
		a, err := ParseAssignment("THRESHOLD := 0.75")
		if err != nil {
			t.Fatalf("ParseAssignment() error = %v", err)
		}
		if a.Key != "THRESHOLD" || a.Kind != KindFloat {
			t.Errorf("got %+v", a)
		}
		f, err := a.Float()
		if err != nil || f != 0.75 {
			t.Errorf("Float() = %v, %v", f, err)
		}
	})

	t.Run("bool value", func(t *testing.T) {
		a, err := ParseAssignment("VERBOSE = TRUE")
		if err != nil {
			t.Fatalf("ParseAssignment() error = %v", err)
		}
		b, err := a.Bool()
		if err != nil || !b {
			t.Errorf("Bool() = %v, %v", b, err)
		}
	})

	t.Run("rejects non-assignments", func(t *testing.T) {
		if _, err := ParseAssignment("just words"); err == nil {
			t.Error("ParseAssignment() accepted a non-assignment")
		}
	})
}

func TestExpand(t *testing.T) {
	vars := map[string]string{
		"NAME":    "teakit",
		"VERSION": "1.2",
	}

	t.Run("single reference", func(t *testing.T) {
		out, err := Expand("build $(NAME)", vars)
		if err != nil {
			t.Fatalf("Expand() error = %v", err)
		}
		if out != "build teakit" {
			t.Errorf("got %q", out)
		}
	})

	t.Run("multiple references with different lengths", func(t *testing.T) {
		out, err := Expand("$(NAME)-$(VERSION)/$(NAME).tar", vars)
		if err != nil {
			t.Fatalf("Expand() error = %v", err)
		}
		if out != "teakit-1.2/teakit.tar" {
			t.Errorf("got %q", out)
		}
	})

	t.Run("no references passes through", func(t *testing.T) {
		out, err := Expand("plain text", vars)
		if err != nil || out != "plain text" {
			t.Errorf("got %q, %v", out, err)
		}
	})

	t.Run("undefined variable errors", func(t *testing.T) {
		_, err := Expand("$(NAME) $(MISSING)", vars)
		if err == nil {
			t.Fatal("Expand() accepted an undefined variable")
		}
		if !strings.Contains(err.Error(), "MISSING") {
			t.Errorf("error %q does not name the variable", err.Error())
		}
	})
}

func TestReferences(t *testing.T) {
	refs := References("cp $(SRC) $(DST) && echo $(SRC)")
	want := []string{"SRC", "DST", "SRC"}
	if len(refs) != len(want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], want[i])
		}
	}

	if refs := References("nothing here"); refs != nil {
		t.Errorf("got %v for text without references", refs)
	}
}
