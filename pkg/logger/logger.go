// Package logger is the JSON-lines structured logger the CLI entrypoints
// write through. Simulation-internal diagnostics never go here — the
// engine reports through its event stream so replay identity is never
// entangled with log output; this logger carries only operational context
// (run ids, experiment ids, tick counts) around a run.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})

	// With returns a child logger whose entries always carry fields, used
	// to scope every line of a run or experiment to its id without
	// threading the id through each call site.
	With(fields map[string]interface{}) Logger
}

type jsonLogger struct {
	serviceName string
	base        map[string]interface{}
	logger      *log.Logger
}

func New(serviceName string) Logger {
	return &jsonLogger{
		serviceName: serviceName,
		logger:      log.New(os.Stdout, "", 0),
	}
}

func (l *jsonLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &jsonLogger{serviceName: l.serviceName, base: merged, logger: l.logger}
}

func (l *jsonLogger) log(level, message string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"service":   l.serviceName,
		"message":   message,
	}

	for k, v := range l.base {
		entry[k] = coerce(v)
	}
	for k, v := range fields {
		entry[k] = coerce(v)
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("JSON marshal error: %v", err)
		return
	}
	l.logger.Println(string(jsonData))
}

// coerce flattens field values that do not marshal usefully as-is:
// decimals and Stringers (money.Cents included) render as their canonical
// string form, errors as their message.
func coerce(v interface{}) interface{} {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.String()
	case *decimal.Decimal:
		if val != nil {
			return val.String()
		}
		return "0"
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return v
	}
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.log("info", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.log("error", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.log("warn", message, fields)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.log("debug", message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.log("fatal", message, fields)
	os.Exit(1)
}

// NewNop returns a logger that discards everything, for tests and for
// sandboxed optimization sub-simulations where per-tick logging is noise.
func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
func (l *nopLogger) With(fields map[string]interface{}) Logger           { return l }
