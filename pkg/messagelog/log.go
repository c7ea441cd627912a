// Package messagelog records the messages exchanged with a pod.
//
// A Log is handed to exchange.SessionConfig as its MessageLogger. Each
// complete request and reply is kept with its direction and the time it
// crossed the link, for later inspection or export.
package messagelog

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/podlink/pkg/exchange"
)

// Direction tells whether a message was sent or received.
type Direction int

const (
	// DirectionSend marks a message sent to the pod.
	DirectionSend Direction = iota
	// DirectionReceive marks a message received from the pod.
	DirectionReceive
)

// String returns "send" or "receive".
func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "send"
	case DirectionReceive:
		return "receive"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Entry is one logged message.
type Entry struct {
	Direction Direction
	Timestamp time.Time
	Data      []byte
}

// String formats the entry as "<timestamp> <direction> <hex>".
func (e Entry) String() string {
	return fmt.Sprintf("%s %v %s", e.Timestamp.Format(time.RFC3339Nano), e.Direction, hex.EncodeToString(e.Data))
}

// Config configures a Log.
type Config struct {
	// Capacity bounds the number of kept entries. The oldest entry is
	// dropped once it is reached. Zero keeps everything.
	Capacity int

	// Now returns the timestamp for new entries. Defaults to time.Now.
	Now func() time.Time

	// LoggerFactory mirrors every entry to a debug logger. Optional.
	LoggerFactory logging.LoggerFactory
}

// Log is an in-memory message log. It is safe for concurrent use.
type Log struct {
	capacity int
	now      func() time.Time
	log      logging.LeveledLogger

	mu      sync.Mutex
	entries []Entry
}

var _ exchange.MessageLogger = (*Log)(nil)

// New creates an empty log.
func New(config Config) *Log {
	l := &Log{capacity: config.Capacity, now: config.Now}
	if l.now == nil {
		l.now = time.Now
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("messagelog")
	}
	return l
}

// OnSent implements exchange.MessageLogger.
func (l *Log) OnSent(data []byte) { l.Record(DirectionSend, data) }

// OnReceived implements exchange.MessageLogger.
func (l *Log) OnReceived(data []byte) { l.Record(DirectionReceive, data) }

// Record appends an entry stamped with the current time. data is copied.
func (l *Log) Record(dir Direction, data []byte) {
	e := Entry{Direction: dir, Timestamp: l.now(), Data: append([]byte(nil), data...)}

	l.mu.Lock()
	if l.capacity > 0 && len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	if l.log != nil {
		l.log.Debug(e.String())
	}
}

// Entries returns a copy of the logged entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Erase removes all entries.
func (l *Log) Erase() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// String renders the log as a markdown list under a "### MessageLog" heading.
func (l *Log) String() string {
	var b strings.Builder
	_, _ = l.WriteTo(&b)
	return strings.TrimSuffix(b.String(), "\n")
}

// WriteTo writes the String form followed by a newline.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := io.WriteString(w, "### MessageLog\n")
	total += int64(n)
	if err != nil {
		return total, err
	}
	for _, e := range l.Entries() {
		n, err = fmt.Fprintf(w, "* %v\n", e)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
