package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/buildgrid/internal/scheduler"
	"github.com/vk/buildgrid/internal/syntax"
)

// spawnRequest/spawnResponse are the wire messages exchanged with a spawned
// worker process. Scope values are carried as go-cty's stable JSON
// encoding so the worker doesn't need to link the analyzer, just go-cty.
type spawnRequest struct {
	Command string            `msgpack:"command"`
	Scope   map[string]string `msgpack:"scope"`
	Seed    string            `msgpack:"seed"`
}

type spawnResponse struct {
	OK    bool   `msgpack:"ok"`
	Value string `msgpack:"value,omitempty"`
	Err   string `msgpack:"err,omitempty"`
}

// SpawnBackend is the "local pool (spawned)" backend (spec §4.G item 2):
// each dispatch launches WorkerCmd as a child process and exchanges one
// msgpack-framed request/response pair over its stdin/stdout.
type SpawnBackend struct {
	WorkerCmd    []string
	MaxParallelN int
}

// Dispatch implements Backend.
func (b *SpawnBackend) Dispatch(ctx context.Context, item scheduler.WorkItem) (<-chan scheduler.Outcome, error) {
	return dispatchSync(ctx, func() scheduler.Outcome {
		val, err := b.roundTrip(ctx, item)
		if err != nil {
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}
		return scheduler.Outcome{Status: scheduler.StatusBuilt, Value: val}
	}), nil
}

func (b *SpawnBackend) roundTrip(ctx context.Context, item scheduler.WorkItem) (cty.Value, error) {
	if len(b.WorkerCmd) == 0 {
		return cty.NilVal, fmt.Errorf("dispatch: SpawnBackend has no WorkerCmd configured")
	}

	cmd := exec.CommandContext(ctx, b.WorkerCmd[0], b.WorkerCmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: opening worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: starting worker: %w", err)
	}

	req := spawnRequest{
		Command: syntax.Deparse(item.Command),
		Scope:   make(map[string]string, len(item.EvalScope)),
		Seed:    item.Seed,
	}
	for name, v := range item.EvalScope {
		encoded, err := (&ctyjson.SimpleJSONValue{Value: v}).MarshalJSON()
		if err != nil {
			return cty.NilVal, fmt.Errorf("dispatch: encoding scope value %q: %w", name, err)
		}
		req.Scope[name] = string(encoded)
	}

	if err := msgpack.NewEncoder(stdin).Encode(&req); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: encoding request to worker: %w", err)
	}
	stdin.Close()

	var resp spawnResponse
	if err := msgpack.NewDecoder(bufio.NewReader(stdout)).Decode(&resp); err != nil {
		cmd.Wait()
		return cty.NilVal, fmt.Errorf("dispatch: decoding worker response: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: worker process failed: %w", err)
	}

	if !resp.OK {
		return cty.NilVal, fmt.Errorf("dispatch: worker reported error: %s", resp.Err)
	}

	var simple ctyjson.SimpleJSONValue
	if err := simple.UnmarshalJSON([]byte(resp.Value)); err != nil {
		return cty.NilVal, fmt.Errorf("dispatch: decoding worker value: %w", err)
	}
	return simple.Value, nil
}

// MaxParallel implements Backend.
func (b *SpawnBackend) MaxParallel() int {
	if b.MaxParallelN < 1 {
		return 1
	}
	return b.MaxParallelN
}
