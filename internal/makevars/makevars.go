// Package makevars harvests configuration from Makefiles: it evaluates a
// recipe that prints VAR = value lines, parses the assignments with typed
// values, and expands $(VAR) references in arbitrary text.
package makevars

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies the literal form of an assignment value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	}
	return "string"
}

// Assignment is one parsed VAR = value pair.
type Assignment struct {
	Key  string
	Raw  string
	Kind Kind
}

// Int converts the raw value; valid only for KindInt.
func (a Assignment) Int() (int64, error) {
	return strconv.ParseInt(a.Raw, 10, 64)
}

// Float converts the raw value; valid for KindFloat and KindInt.
func (a Assignment) Float() (float64, error) {
	return strconv.ParseFloat(a.Raw, 64)
}

// Bool converts the raw value; valid only for KindBool.
func (a Assignment) Bool() (bool, error) {
	return strconv.ParseBool(strings.ToLower(a.Raw))
}

var (
	floatRE      = regexp.MustCompile(`^\d+\.\d+$`)
	intRE        = regexp.MustCompile(`^\d+$`)
	boolRE       = regexp.MustCompile(`^(?i:true|false)$`)
	assignmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]+\s*(:=|=)\s*(\S+|'.*'|".*")$`)
	identifierRE = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)
)

// DetectKind classifies a raw value string.
func DetectKind(raw string) Kind {
	switch {
	case floatRE.MatchString(raw):
		return KindFloat
	case intRE.MatchString(raw):
		return KindInt
	case boolRE.MatchString(raw):
		return KindBool
	}
	return KindString
}

// IsAssignment reports whether a line is a VAR = value (or VAR := value)
// assignment.
func IsAssignment(line string) bool {
	return assignmentRE.MatchString(strings.TrimSpace(line))
}

// ParseAssignment splits a VAR = value line into a typed assignment.
func ParseAssignment(line string) (Assignment, error) {
	trimmed := strings.TrimSpace(line)
	if !IsAssignment(trimmed) {
		return Assignment{}, fmt.Errorf("not a variable assignment: %q", line)
	}

	key, value, _ := strings.Cut(trimmed, "=")
	key = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(key), ":"))
	value = strings.TrimSpace(value)

	return Assignment{Key: key, Raw: value, Kind: DetectKind(value)}, nil
}

// Expand replaces every $(VAR) reference in text with its value from vars.
// Referencing an undefined variable is an error, matching make's strictness
// less: make silently expands to empty, which hides typos.
func Expand(text string, vars map[string]string) (string, error) {
	var missing []string
	expanded := identifierRE.ReplaceAllStringFunc(text, func(match string) string {
		name := identifierRE.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// References returns the names of all $(VAR) identifiers in text, in order of
// appearance.
func References(text string) []string {
	var names []string
	for _, match := range identifierRE.FindAllStringSubmatch(text, -1) {
		names = append(names, match[1])
	}
	return names
}

// EvalRecipe runs `make -s <recipe>` and returns its stdout lines.
func EvalRecipe(ctx context.Context, recipe string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "make", "-s", recipe).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate recipe %q: %w", recipe, err)
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}

// RecipeVars evaluates a recipe and collects every printed assignment into a
// variable map. Non-assignment lines are ignored.
func RecipeVars(ctx context.Context, recipe string) (map[string]string, error) {
	lines, err := EvalRecipe(ctx, recipe)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, line := range lines {
		if !IsAssignment(line) {
			continue
		}
		assignment, err := ParseAssignment(line)
		if err != nil {
			return nil, err
		}
		vars[assignment.Key] = assignment.Raw
	}
	return vars, nil
}
