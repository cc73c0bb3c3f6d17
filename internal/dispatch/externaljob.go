package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/buildgrid/internal/scheduler"
	"github.com/vk/buildgrid/internal/syntax"
)

// jobTemplateData is the data text/template renders a job script against.
type jobTemplateData struct {
	Target      string
	Command     string
	CacheDir    string
	SentinelFile string
	ResultFile  string
}

// ExternalJobBackend is the "external job" backend (spec §4.G item 3): it
// renders a job script per target, invokes a submit command, then waits on
// an opaque job handle by polling for a sentinel file's creation. This is
// the shape the "parallelism by transient dummy timestamps" pattern needs:
// the scheduler doesn't know or care how the submitted job actually runs,
// only that the sentinel eventually appears.
type ExternalJobBackend struct {
	// Template renders the job script body.
	Template *template.Template
	// SubmitCmd is invoked with the rendered script path as its final
	// argument, e.g. []string{"bash"} or []string{"qsub"}.
	SubmitCmd []string
	// WorkDir holds rendered scripts, sentinels, and result files.
	WorkDir string
	// PollInterval controls how often the sentinel file is checked.
	PollInterval time.Duration
	// MaxParallelN bounds concurrent external submissions.
	MaxParallelN int
}

// Dispatch implements Backend.
func (b *ExternalJobBackend) Dispatch(ctx context.Context, item scheduler.WorkItem) (<-chan scheduler.Outcome, error) {
	return dispatchSync(ctx, func() scheduler.Outcome {
		val, err := b.runJob(ctx, item)
		if err != nil {
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}
		return scheduler.Outcome{Status: scheduler.StatusBuilt, Value: val}
	}), nil
}

func (b *ExternalJobBackend) runJob(ctx context.Context, item scheduler.WorkItem) (cty.Value, error) {
	if err := os.MkdirAll(b.WorkDir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: creating work dir: %w", err)
	}

	scriptPath := filepath.Join(b.WorkDir, item.Name+".job")
	sentinelPath := filepath.Join(b.WorkDir, item.Name+".done")
	resultPath := filepath.Join(b.WorkDir, item.Name+".result")
	os.Remove(sentinelPath)
	os.Remove(resultPath)

	data := jobTemplateData{
		Target:       item.Name,
		Command:      syntax.Deparse(item.Command),
		CacheDir:     b.WorkDir,
		SentinelFile: sentinelPath,
		ResultFile:   resultPath,
	}
	var buf bytes.Buffer
	if err := b.Template.Execute(&buf, data); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: rendering job template for %q: %w", item.Name, err)
	}
	if err := os.WriteFile(scriptPath, buf.Bytes(), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: writing job script: %w", err)
	}

	args := append(append([]string{}, b.SubmitCmd[1:]...), scriptPath)
	cmd := exec.CommandContext(ctx, b.SubmitCmd[0], args...)
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: submitting job for %q: %w", item.Name, err)
	}

	if err := b.waitForSentinel(ctx, sentinelPath); err != nil {
		return cty.NilVal, err
	}

	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: reading result for %q: %w", item.Name, err)
	}
	var simple ctyjson.SimpleJSONValue
	if err := simple.UnmarshalJSON(raw); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: decoding result for %q: %w", item.Name, err)
	}
	return simple.Value, nil
}

func (b *ExternalJobBackend) waitForSentinel(ctx context.Context, path string) error {
	interval := b.PollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MaxParallel implements Backend.
func (b *ExternalJobBackend) MaxParallel() int {
	if b.MaxParallelN < 1 {
		return 1
	}
	return b.MaxParallelN
}
