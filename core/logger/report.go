package logger

import (
	"strconv"
)

// NewReport creates an empty Report.
func NewReport() *Report {
	return &Report{
		Commands: CommandReport{
			Failures: NewPathCounter("command", "exit_code"),
		},
		UIRequests: NewPathCounter("request", "error"),
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       int        `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries"`

	Commands   CommandReport `json:"command_report"`
	Kills      StrCounter    `json:"kills"`
	EOFs       StrCounter    `json:"eofs"`
	UIRequests *PathCounter  `json:"ui_requests"`
}

// Update adds a log entry to the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Type {
	case EventSessionStart:
		r.Sessions++
	case EventRunCommand:
		r.Commands.update(le)
	case EventKill:
		r.Kills.Increment(le.GetString("program"))
	case EventEOF:
		r.EOFs.Increment(le.GetString("program"))
	case EventUIRequest:
		r.UIRequests.Increment(le.GetString("request"), le.GetString("error"))
	case EventSessionEnd:
		// Ignore
	default:
		r.InvalidEntries.Increment(string(le.Type))
	}
}

// CommandReport summarizes run_command events.
type CommandReport struct {
	// Dispatch decisions and their counts.
	Decisions StrCounter `json:"decisions"`
	// Program names and their counts.
	CommandNames StrCounter `json:"command_names"`
	// Non-zero exits grouped by program.
	Failures *PathCounter `json:"failures"`
}

func (r *CommandReport) update(le *LogEntry) {
	r.Decisions.Increment(le.GetString("decision"))

	command := le.GetString("command")
	r.CommandNames.Increment(command)
	if code := le.GetInt("exit_code"); code != 0 {
		r.Failures.Increment(command, strconv.Itoa(code))
	}
}

// SessionReport groups the commands run in each session.
type SessionReport struct {
	// Map of sessionID -> session
	Sessions map[string]*SessionSummary `json:"sessions"`
}

// SessionSummary describes a single terminal session.
type SessionSummary struct {
	Terminal   string   `json:"terminal"`
	RemoteAddr string   `json:"remote_addr,omitempty"`
	LogEntries int      `json:"log_entries"`
	Commands   []string `json:"commands"`
	ExitCode   *int     `json:"exit_code,omitempty"`
}

// Update adds a log entry to the report.
func (r *SessionReport) Update(le *LogEntry) {
	if le.SessionID == "" {
		return
	}
	if r.Sessions == nil {
		r.Sessions = make(map[string]*SessionSummary)
	}

	summary, ok := r.Sessions[le.SessionID]
	if !ok {
		summary = &SessionSummary{}
		r.Sessions[le.SessionID] = summary
	}

	summary.LogEntries++
	switch le.Type {
	case EventSessionStart:
		summary.Terminal = le.GetString("terminal")
		summary.RemoteAddr = le.GetString("remote_addr")
	case EventRunCommand:
		summary.Commands = append(summary.Commands, le.GetString("line"))
	case EventSessionEnd:
		code := le.GetInt("exit_code")
		summary.ExitCode = &code
	}
}
