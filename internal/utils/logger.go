package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Tests may swap its output.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return l
}

// SetLogLevel accepts logrus level names; unknown values keep the current level.
func SetLogLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return
	}
	Log.SetLevel(lvl)
}

func eventEntry(requestID, module, action string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"module":     strings.ToUpper(module),
		"action":     action,
		"request_id": strings.TrimSpace(requestID),
	})
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	eventEntry(requestID, module, action).Info(message)
}

func LogWarn(requestID, module, action, message string) {
	eventEntry(requestID, module, action).Warn(message)
}

func LogError(requestID, module, action, message string, err error) {
	e := eventEntry(requestID, module, action)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// LogSecurity marks rejected signatures, bad shared secrets and tampered amounts.
func LogSecurity(requestID, module, action, message string) {
	eventEntry(requestID, module, action).WithField("security", true).Warn(message)
}
