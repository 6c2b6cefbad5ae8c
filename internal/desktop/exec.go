package desktop

import (
	"context"
	"fmt"
	"os/exec"
)

// ExecFunc runs a command and returns its combined output.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- callers pass fixed wmctrl/xdotool commands; titles are single argv entries.
	command := exec.CommandContext(ctx, name, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s %v failed: %w (%s)", name, args, err, string(output))
	}
	return output, nil
}
