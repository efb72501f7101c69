package memprof

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/process"
)

// Reader reports the resident set size of a process in bytes.
type Reader interface {
	RSS(pid int) (uint64, error)
}

// ProcessReader reads RSS for any PID through gopsutil, so child solver processes are
// observed on every platform gopsutil supports.
type ProcessReader struct {
	Ctx context.Context // nil means context.Background
}

func (r ProcessReader) RSS(pid int) (uint64, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, fmt.Errorf("pid %d: %w", pid, err)
	}
	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading memory of pid %d: %w", pid, err)
	}
	return mi.RSS, nil
}

// DefaultReader returns the gopsutil-backed reader.
func DefaultReader() Reader {
	return ProcessReader{}
}
