package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-editor/internal/core"
)

// reporter prints alerts on the error stream and records them in the log.
type reporter struct {
	log *logger.Logger

	mu     sync.Mutex
	writer io.Writer
}

func newReporter(log *logger.Logger, writer io.Writer) *reporter {
	return &reporter{log: log, writer: writer}
}

func (r *reporter) Report(alert core.Alert) {
	message := strings.Join(alert.Lines, " ")
	if alert.Err != nil {
		r.log.Error("%s: %v", message, alert.Err)
	} else {
		r.log.Warn("%s", message)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range alert.Lines {
		_, _ = fmt.Fprintf(r.writer, "! %s\n", line)
	}

	if alert.Err != nil {
		_, _ = fmt.Fprintf(r.writer, "! %v\n", alert.Err)
	}
}
