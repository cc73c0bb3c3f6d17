// Package planfile loads a plan (internal/plan.Plan) from an HCL document,
// keeping the teacher's hashicorp/hcl-driven schema-then-translate loader
// shape (internal/hcl in the teacher) even though the command language
// itself is parsed by internal/syntax, not by HCL expressions.
package planfile

import "github.com/hashicorp/hcl/v2"

// document is the root HCL schema: a flat list of `target` blocks.
type document struct {
	Targets []*targetBlock `hcl:"target,block"`
	Body    hcl.Body       `hcl:",remain"`
}

// targetBlock is the HCL-specific shape of a single plan row.
type targetBlock struct {
	Name      string   `hcl:"name,label"`
	Command   string   `hcl:"command"`
	Trigger   string   `hcl:"trigger,optional"`
	Evaluator string   `hcl:"evaluator,optional"`
	Extra     hcl.Body `hcl:",remain"`
}
