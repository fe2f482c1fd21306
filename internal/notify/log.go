package notify

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
)

// AttemptLog is the append-only CSV audit trail of notification attempts.
// One line per attempt, success or not; it is written, never read back.
type AttemptLog struct {
	mu   sync.Mutex
	path string
}

// NewAttemptLog returns a log writing to path. The file is created with a
// header row on first use.
func NewAttemptLog(path string) *AttemptLog {
	return &AttemptLog{path: path}
}

var attemptHeader = []string{"timestamp", "attempt_id", "order_id", "message", "result"}

// Append records one attempt. attemptID correlates the CSV line with the
// structured logs. Newlines in the message are flattened so every attempt
// stays on one CSV row.
func (l *AttemptLog) Append(a Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open attempt log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(attemptHeader); err != nil {
			return fmt.Errorf("write attempt log header: %w", err)
		}
	}
	result := "sent"
	if !a.Sent {
		result = "error"
	}
	row := []string{
		rules.FormatTimestamp(a.At),
		a.AttemptID,
		a.OrderID,
		strings.ReplaceAll(a.Message, "\n", " "),
		result,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write attempt log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush attempt log: %w", err)
	}
	return nil
}

// NewAttemptID returns a fresh attempt correlation id.
func NewAttemptID() string {
	return uuid.NewString()
}
