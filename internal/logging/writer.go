package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
	"github.com/google/uuid"

	"github.com/flowrun/flowrun/internal/pubsub"
)

const maxStoredLogs = 1000

// LogMessage is a parsed slog text record.
type LogMessage struct {
	ID          string
	Time        time.Time
	Level       string
	Persist     bool
	PersistTime time.Duration
	Message     string
	Attributes  []Attr
}

type Attr struct {
	Key   string
	Value string
}

type logData struct {
	messages []LogMessage
	*pubsub.Broker[LogMessage]
	lock sync.Mutex
}

func (l *logData) Add(msg LogMessage) {
	l.lock.Lock()
	l.messages = append(l.messages, msg)
	if len(l.messages) > maxStoredLogs {
		l.messages = l.messages[len(l.messages)-maxStoredLogs:]
	}
	l.lock.Unlock()
	l.Publish(pubsub.CreatedEvent, msg)
}

func (l *logData) List() []LogMessage {
	l.lock.Lock()
	defer l.lock.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

var defaultLogData = &logData{
	messages: make([]LogMessage, 0),
	Broker:   pubsub.NewBroker[LogMessage](),
}

type writer struct {
	out io.Writer
}

// NewWriter returns the sink used by the slog text handler. Every record is
// parsed back from logfmt, kept in memory and published to subscribers.
func NewWriter() io.Writer {
	return &writer{}
}

// NewTeeWriter behaves like NewWriter and additionally copies raw records to out.
func NewTeeWriter(out io.Writer) io.Writer {
	return &writer{out: out}
}

func (w *writer) Write(p []byte) (int, error) {
	if w.out != nil {
		if _, err := w.out.Write(p); err != nil {
			return 0, err
		}
	}

	d := logfmt.NewDecoder(bytes.NewReader(p))
	for d.ScanRecord() {
		msg := LogMessage{
			ID:   uuid.NewString(),
			Time: time.Now(),
		}
		for d.ScanKeyval() {
			switch string(d.Key()) {
			case "time":
				parsed, err := time.Parse(time.RFC3339, string(d.Value()))
				if err != nil {
					return 0, fmt.Errorf("parsing time: %w", err)
				}
				msg.Time = parsed
			case "level":
				msg.Level = strings.ToLower(string(d.Value()))
			case "msg":
				msg.Message = string(d.Value())
			default:
				if string(d.Key()) == persistKeyArg {
					msg.Persist = true
					continue
				}
				msg.Attributes = append(msg.Attributes, Attr{
					Key:   string(d.Key()),
					Value: string(d.Value()),
				})
			}
		}
		defaultLogData.Add(msg)
	}
	if d.Err() != nil {
		return 0, d.Err()
	}
	return len(p), nil
}

// Subscribe streams log records published after the call.
func Subscribe(ctx context.Context) <-chan pubsub.Event[LogMessage] {
	return defaultLogData.Subscribe(ctx)
}

// List returns the most recent log records.
func List() []LogMessage {
	return defaultLogData.List()
}
