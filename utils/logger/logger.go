package logger

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

const tagWidth = 20

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		t := reflect.TypeOf(obj)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		objStr = t.Name()
	}
	if len(objStr) > tagWidth {
		objStr = objStr[:tagWidth]
	}
	return
}

func format(obj any, msg string) string {
	return fmt.Sprintf("|%20s|%-100s", objToString(obj), msg)
}

// Init sets the global level and the text formatter used by every logger call.
func Init(lvl logrus.Level) {
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/02/01 15:04:05",
	})
}

// Enabled reports whether messages of the given level are emitted.
func Enabled(lvl logrus.Level) bool {
	return logrus.IsLevelEnabled(lvl)
}

// Entry is a logger bound to an object and a set of structured fields.
type Entry struct {
	obj   any
	entry *logrus.Entry
}

// WithFields binds structured fields to messages about obj.
func WithFields(obj any, fields logrus.Fields) *Entry {
	return &Entry{obj: obj, entry: logrus.WithFields(fields)}
}

func (e *Entry) Debugf(message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	e.entry.Debug(format(e.obj, fmt.Sprintf(message, args...)))
}

func (e *Entry) Infof(message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	e.entry.Info(format(e.obj, fmt.Sprintf(message, args...)))
}

func (e *Entry) Warningf(message string, args ...any) {
	if !logrus.IsLevelEnabled(logrus.WarnLevel) {
		return
	}
	e.entry.Warning(format(e.obj, fmt.Sprintf(message, args...)))
}

func Trace(object any, message string) {
	if logrus.GetLevel() < logrus.TraceLevel {
		return
	}
	logrus.Trace(format(object, message))
}

func Tracef(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.TraceLevel {
		return
	}
	logrus.Trace(format(object, fmt.Sprintf(message, args...)))
}

func Debug(object any, message string) {
	if logrus.GetLevel() < logrus.DebugLevel {
		return
	}
	logrus.Debug(format(object, message))
}

func Debugf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.DebugLevel {
		return
	}
	logrus.Debug(format(object, fmt.Sprintf(message, args...)))
}

func Info(object any, message string) {
	if logrus.GetLevel() < logrus.InfoLevel {
		return
	}
	logrus.Info(format(object, message))
}

func Infof(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.InfoLevel {
		return
	}
	logrus.Info(format(object, fmt.Sprintf(message, args...)))
}

func Warning(object any, message string) {
	if logrus.GetLevel() < logrus.WarnLevel {
		return
	}
	logrus.Warning(format(object, message))
}

func Warningf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.WarnLevel {
		return
	}
	logrus.Warning(format(object, fmt.Sprintf(message, args...)))
}

func Error(object any, message string) {
	if logrus.GetLevel() < logrus.ErrorLevel {
		return
	}
	logrus.Error(format(object, message))
}

func Errorf(object any, message string, args ...any) {
	if logrus.GetLevel() < logrus.ErrorLevel {
		return
	}
	logrus.Error(format(object, fmt.Sprintf(message, args...)))
}
