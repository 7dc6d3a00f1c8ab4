package endpoint

import (
	"fmt"
	"regexp"
	"sort"
)

// validate enforces the descriptor invariants that must hold before a
// definition enters a snapshot. Violations fail the load of this one
// endpoint; they never surface at request time.
func (d *Definition) validate() error {
	switch d.Kind {
	case KindSQL:
		return d.validateSQL()
	case KindComposite:
		return d.validateComposite()
	case KindProxy, KindFile, KindStatic:
		return nil
	default:
		return fmt.Errorf("unknown endpoint kind %q", d.Kind)
	}
}

func (d *Definition) validateSQL() error {
	spec := d.SQL

	for _, required := range spec.RequiredColumns {
		if !spec.columns.HasAlias(required) {
			return fmt.Errorf("required column %q is not in AllowedColumns", required)
		}
	}

	if spec.PrimaryKey != "" && spec.columns.Len() > 0 && !spec.columns.HasAlias(spec.PrimaryKey) {
		return fmt.Errorf("primary key %q is not in AllowedColumns", spec.PrimaryKey)
	}

	if hasMethod(d.AllowedMethods, "DELETE") && spec.PrimaryKey == "" && spec.Procedure == "" {
		return fmt.Errorf("DELETE requires a PrimaryKey")
	}

	if len(spec.ColumnValidation) > 0 {
		spec.rules = make(map[string]*regexp.Regexp, len(spec.ColumnValidation))
		for alias, rule := range spec.ColumnValidation {
			if !spec.columns.HasAlias(alias) {
				return fmt.Errorf("validation rule for %q does not match any AllowedColumns alias", alias)
			}
			re, err := regexp.Compile(rule.Regex)
			if err != nil {
				return fmt.Errorf("validation rule for %q: invalid regex: %w", alias, err)
			}
			spec.rules[alias] = re
		}
	}

	return d.validateParameters()
}

func (d *Definition) validateParameters() error {
	spec := d.SQL
	positions := make([]int, 0, len(spec.Parameters))

	for i := range spec.Parameters {
		p := &spec.Parameters[i]
		if p.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}

		switch p.Source {
		case SourcePath:
			if p.Position < 1 {
				return fmt.Errorf("parameter %q: path positions are 1-based", p.Name)
			}
			positions = append(positions, p.Position)
		case SourceQuery, SourceHeader:
			if p.Key == "" {
				p.Key = p.Name
			}
		default:
			return fmt.Errorf("parameter %q: unknown source %q", p.Name, p.Source)
		}

		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("parameter %q: invalid pattern: %w", p.Name, err)
			}
			p.pattern = re
		}
	}

	// Used path positions must be contiguous starting at 1.
	sort.Ints(positions)
	for i, pos := range positions {
		if pos != i+1 {
			return fmt.Errorf("path parameter positions must be contiguous from 1, got %v", positions)
		}
	}

	return nil
}

func (d *Definition) validateComposite() error {
	spec := d.Composite

	byName := make(map[string]bool, len(spec.Steps))
	for i := range spec.Steps {
		name := spec.Steps[i].Name
		if byName[name] {
			return fmt.Errorf("duplicate step name %q", name)
		}
		byName[name] = true
	}

	for i := range spec.Steps {
		step := &spec.Steps[i]
		for _, dep := range step.DependsOn {
			if !byName[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", step.Name, dep)
			}
			if dep == step.Name {
				return fmt.Errorf("step %q depends on itself", step.Name)
			}
		}
	}

	order, err := topoSort(spec.Steps)
	if err != nil {
		return err
	}
	spec.TopoOrder = order
	return nil
}

// topoSort orders step names so every step follows its dependencies,
// reporting an error when the graph has a cycle. Ties keep declaration
// order, which keeps execution deterministic.
func topoSort(steps []Step) ([]string, error) {
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	declared := make(map[string]int, len(steps))

	for i := range steps {
		name := steps[i].Name
		declared[name] = i
		indegree[name] += 0
		for _, dep := range steps[i].DependsOn {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(steps))
	for i := range steps {
		if indegree[steps[i].Name] == 0 {
			ready = append(ready, steps[i].Name)
		}
	}

	order := make([]string, 0, len(steps))
	for len(ready) > 0 {
		// Pop the earliest-declared ready step.
		sort.Slice(ready, func(a, b int) bool { return declared[ready[a]] < declared[ready[b]] })
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, fmt.Errorf("step dependencies contain a cycle")
	}
	return order, nil
}

func hasMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
