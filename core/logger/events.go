package logger

import "strings"

// EventType identifies the kind of a LogEntry.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
	EventRunCommand   EventType = "run_command"
	EventKill         EventType = "kill"
	EventEOF          EventType = "eof"
	EventUIRequest    EventType = "ui_request"
)

// Event is the payload of a LogEntry before it's stamped with a time and
// session.
type Event struct {
	Type   EventType
	Fields map[string]interface{}
}

// SessionStart is recorded when a terminal opens.
func SessionStart(terminal, remoteAddr string, env []string) Event {
	return Event{EventSessionStart, map[string]interface{}{
		"terminal":    terminal,
		"remote_addr": remoteAddr,
		"environment": toList(env),
	}}
}

// SessionEnd is recorded when a terminal closes.
func SessionEnd(exitCode int) Event {
	return Event{EventSessionEnd, map[string]interface{}{
		"exit_code": exitCode,
	}}
}

// RunCommand is recorded for every top-level line the shell runs.
func RunCommand(line, decision string, exitCode int) Event {
	command := ""
	if fields := strings.Fields(line); len(fields) > 0 {
		command = fields[0]
	}

	return Event{EventRunCommand, map[string]interface{}{
		"line":      line,
		"command":   command,
		"decision":  decision,
		"exit_code": exitCode,
	}}
}

// Kill is recorded when the running command is interrupted.
func Kill(program string) Event {
	return Event{EventKill, map[string]interface{}{
		"program": program,
	}}
}

// EOF is recorded when the user closes the running command's input.
func EOF(program string) Event {
	return Event{EventEOF, map[string]interface{}{
		"program": program,
	}}
}

// UIRequest is recorded when a built-in asks the front end to do something.
func UIRequest(request string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{EventUIRequest, map[string]interface{}{
		"request": request,
		"error":   errMsg,
	}}
}

// structpb only accepts []interface{} for lists.
func toList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
