package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/btdirectory/api/errorkinds"
)

// waitDelay bounds how long a killed invocation may keep its output pipe open.
const waitDelay = 100 * time.Millisecond

// NewExecutor returns an ExecuteFunc running the shell at path.
// A positive timeout kills invocations that run longer.
func NewExecutor(path string, timeout time.Duration) ExecuteFunc {
	return func(ctx context.Context, params []string) (Output, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, path, params...) //nolint:gosec // path is configured, params are built by this package
		cmd.WaitDelay = waitDelay
		stdout, err := cmd.Output()

		out := Output{Lines: splitLines(stdout)}
		if err == nil {
			return out, nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}

		return out, fault.Wrap(fmt.Errorf("%w: %w", errorkinds.ErrCommandFailed, err),
			fctx.With(ctx, "error_at", "exec-shell", "path", path),
			ftag.With(ftag.Internal),
			fmsg.With("Control shell did not terminate normally"),
		)
	}
}

func splitLines(b []byte) []string {
	var lines []string

	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines
}
