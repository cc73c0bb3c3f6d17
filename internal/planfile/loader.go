package planfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/buildgrid/internal/plan"
	"github.com/vk/buildgrid/internal/syntax"
)

// Load parses the HCL file at path into a plan.Plan (spec §6 "Plan
// surface"). Each `target "name" { command = "..." }` block becomes one
// row; any attributes beyond name/command/trigger/evaluator are preserved
// in Row.Extra.
func Load(path string) (plan.Plan, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("planfile: parsing %s: %w", path, diags)
	}

	var doc document
	if diags := gohcl.DecodeBody(f.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("planfile: decoding %s: %w", path, diags)
	}

	rows := make(plan.Plan, 0, len(doc.Targets))
	seen := map[string]bool{}
	for _, tb := range doc.Targets {
		if seen[tb.Name] {
			return nil, fmt.Errorf("planfile: duplicate target %q in %s", tb.Name, path)
		}
		seen[tb.Name] = true

		row, err := translateTarget(tb)
		if err != nil {
			return nil, fmt.Errorf("planfile: target %q in %s: %w", tb.Name, path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func translateTarget(tb *targetBlock) (plan.Row, error) {
	cmd, err := syntax.Parse(tb.Command)
	if err != nil {
		return plan.Row{}, fmt.Errorf("parsing command: %w", err)
	}

	row := plan.Row{
		Target:    tb.Name,
		Command:   cmd,
		Evaluator: tb.Evaluator,
	}

	if tb.Trigger != "" {
		trig, ok := plan.ParseTrigger(tb.Trigger)
		if !ok {
			return plan.Row{}, fmt.Errorf("unrecognized trigger %q", tb.Trigger)
		}
		row.Trigger = &trig
	}

	extra, err := extractExtra(tb.Extra)
	if err != nil {
		return plan.Row{}, err
	}
	row.Extra = extra
	return row, nil
}

// extractExtra evaluates every attribute left over in body — the unknown
// columns a plan row schema doesn't recognize — so they are preserved on
// Row.Extra (spec §6).
func extractExtra(body hcl.Body) (map[string]any, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading extra attributes: %w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating extra attribute %q: %w", name, diags)
		}
		out[name] = val
	}
	return out, nil
}
