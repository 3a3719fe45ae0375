// Package pipeline loads declarative pipeline files and turns them into
// executable task specs. A pipeline file declares shell-command tasks with
// dependencies; commands may reference Makefile-harvested variables with
// $(VAR) and upstream task output with $(OUT:task).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/teakit/teakit/internal/makevars"
	"github.com/teakit/teakit/internal/scheduler"
)

// File is the on-disk pipeline format.
type File struct {
	Name       string            `json:"name,omitempty"`        // Display name (defaults to the file path)
	VarsRecipe string            `json:"vars_recipe,omitempty"` // Make recipe evaluated for variables
	Vars       map[string]string `json:"vars,omitempty"`        // Inline variables (override recipe values)
	Tasks      []TaskDef         `json:"tasks"`
}

// TaskDef declares one shell-command task.
type TaskDef struct {
	ID        string   `json:"id"`
	Label     string   `json:"label,omitempty"`
	Command   string   `json:"command"`
	DependsOn []string `json:"depends_on,omitempty"`
	Writes    []string `json:"writes,omitempty"` // Paths locked for the duration of the command
}

// Pipeline is a loaded, variable-expanded pipeline ready to build a graph.
type Pipeline struct {
	Name  string
	Vars  map[string]string
	Specs []scheduler.TaskSpec
}

// outRefRE matches $(OUT:task) references to upstream task output. The colon
// keeps them out of makevars' identifier namespace.
var outRefRE = regexp.MustCompile(`\$\(OUT:([A-Za-z0-9_.-]+)\)`)

// Load reads a pipeline file, harvests variables, expands $(VAR) references
// and assembles task specs. base supplies caller-level variables (typically
// from config); the file's recipe and inline vars override them, in that
// order. $(OUT:task) references stay in the command; they both imply a
// dependency on the named task and are substituted with that task's captured
// stdout at dispatch time, via OutputFrom.
func Load(ctx context.Context, path string, base map[string]string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("pipeline %s declares no tasks", path)
	}

	vars := make(map[string]string)
	for key, value := range base {
		vars[key] = value
	}
	if file.VarsRecipe != "" {
		harvested, err := makevars.RecipeVars(ctx, file.VarsRecipe)
		if err != nil {
			return nil, fmt.Errorf("harvesting variables for %s: %w", path, err)
		}
		for key, value := range harvested {
			vars[key] = value
		}
	}
	for key, value := range file.Vars {
		vars[key] = value
	}

	name := file.Name
	if name == "" {
		name = path
	}

	pipeline := &Pipeline{Name: name, Vars: vars}
	locks := newPathLocks()
	for _, def := range file.Tasks {
		spec, err := buildSpec(def, vars, locks)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s, task %q: %w", path, def.ID, err)
		}
		pipeline.Specs = append(pipeline.Specs, spec)
	}
	return pipeline, nil
}

// Graph validates the pipeline's specs and builds the execution graph.
func (p *Pipeline) Graph() (*scheduler.Graph, error) {
	return scheduler.Build(p.Specs)
}

// buildSpec turns one task definition into a TaskSpec. Output references in
// the command become OutputFrom arguments in order of appearance, so the
// command action receives the referenced stdout as resolved args.
func buildSpec(def TaskDef, vars map[string]string, locks *pathLocks) (scheduler.TaskSpec, error) {
	if def.ID == "" {
		return scheduler.TaskSpec{}, fmt.Errorf("task has no id")
	}
	if def.Command == "" {
		return scheduler.TaskSpec{}, fmt.Errorf("task has no command")
	}

	command, err := makevars.Expand(def.Command, vars)
	if err != nil {
		return scheduler.TaskSpec{}, err
	}

	label := def.Label
	if label == "" {
		label = def.ID
	}
	id := scheduler.TaskID{Key: def.ID, Label: label}

	var args []any
	var refs []string
	for _, match := range outRefRE.FindAllStringSubmatch(command, -1) {
		refs = append(refs, match[1])
		args = append(args, scheduler.OutputFrom(scheduler.TaskID{Key: match[1]}))
	}

	deps := make([]scheduler.TaskID, 0, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		deps = append(deps, scheduler.TaskID{Key: dep})
	}

	return scheduler.TaskSpec{
		ID:        id,
		Run:       commandAction(command, refs, def.Writes, locks),
		Args:      args,
		DependsOn: deps,
	}, nil
}
