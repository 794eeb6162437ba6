package capture

import (
	"os/exec"
	"strings"
	"sync"
)

// commandContext is swappable in tests.
var commandContext = exec.CommandContext

// stderrTailLimit bounds how much subprocess stderr is retained for error
// reporting.
const stderrTailLimit = 4096

// lockedBuffer keeps the tail of subprocess stderr for error reporting.
type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if overflow := len(b.buf) - stderrTailLimit; overflow > 0 {
		b.buf = b.buf[overflow:]
	}
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

