package logger

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// LogEntry is a single event in the log.
type LogEntry struct {
	TimestampMicros int64
	SessionID       string
	Type            EventType
	Fields          map[string]interface{}
}

// GetString returns a string field, or "" if it's missing.
func (le *LogEntry) GetString(key string) string {
	s, _ := le.Fields[key].(string)
	return s
}

// GetInt returns a numeric field, or 0 if it's missing.
func (le *LogEntry) GetInt(key string) int {
	switch v := le.Fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (le *LogEntry) toProto() (*structpb.Struct, error) {
	fields := le.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	return structpb.NewStruct(map[string]interface{}{
		"timestamp_micros": le.TimestampMicros,
		"session_id":       le.SessionID,
		"type":             string(le.Type),
		"fields":           fields,
	})
}

func entryFromProto(st *structpb.Struct) *LogEntry {
	raw := st.AsMap()

	le := &LogEntry{}
	if ts, ok := raw["timestamp_micros"].(float64); ok {
		le.TimestampMicros = int64(ts)
	}
	le.SessionID, _ = raw["session_id"].(string)
	if t, ok := raw["type"].(string); ok {
		le.Type = EventType(t)
	}
	le.Fields, _ = raw["fields"].(map[string]interface{})
	return le
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures interaction event logs for terminal sessions.
type Logger struct {
	Record LogRecorder
	// Now is the clock used to stamp entries, defaults to time.Now.
	Now func() time.Time
}

// NewJSONLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJSONLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex

	return &Logger{
		Record: func(le *LogEntry) error {
			st, err := le.toProto()
			if err != nil {
				return errors.Wrap(err, "converting log entry")
			}
			entry, err := protojson.Marshal(st)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogger creates a Logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{Record: func(*LogEntry) error { return nil }}
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Logger) record(sessionID string, event Event) error {
	return l.Record(&LogEntry{
		TimestampMicros: l.now().UnixMicro(),
		SessionID:       sessionID,
		Type:            event.Type,
		Fields:          event.Fields,
	})
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	id := ulid.MustNew(ulid.Timestamp(l.now()), rand.Reader)
	return &SessionLogger{Logger: l, sessionID: id.String()}
}

// Sessionless creates a logger that doesn't belong to a session.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every entry.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// Record stamps and stores the event.
func (l *SessionLogger) Record(event Event) error {
	return l.record(l.sessionID, event)
}

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var st structpb.Struct
		if err := protojson.Unmarshal(line, &st); err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}

		handler(entryFromProto(&st))
	}
	return scanner.Err()
}
