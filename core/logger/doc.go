// Package logger is a standardized event logging framework for terminal
// sessions.
//
// Events are written as newline delimited JSON, one protobuf Struct per line,
// so the log can be consumed by anything that reads protojson.
package logger
