package log

import (
	"gopkg.in/Sirupsen/logrus.v0"
)

type Fields logrus.Fields

// Entry is a printf-style log entry of a module, with optional fields.
// Prefer the EntryZ functions on hot paths, Entry always allocates.
type Entry struct {
	mod    Module
	fields Fields
}

func (entry Entry) log() *logrus.Entry {
	var z EntryZ
	for _, c := range loadContexts() {
		c.AddLogContext(&z)
	}

	fields := make(logrus.Fields, len(entry.fields)+z.zfidx+1)
	fields["_mod"] = entry.mod.String()
	for k, v := range entry.fields {
		fields[k] = v
	}
	for i := range z.zfbuf[:z.zfidx] {
		fields[z.zfbuf[i].Key] = z.zfbuf[i].Value()
	}
	return logrus.StandardLogger().WithFields(fields)
}

// WithFields returns a copy of entry with fields added.
func (entry Entry) WithFields(fields Fields) Entry {
	merged := make(Fields, len(entry.fields)+len(fields))
	for k, v := range entry.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	entry.fields = merged
	return entry
}

func (entry Entry) WithField(key string, value any) Entry {
	return entry.WithFields(Fields{key: value})
}

func (entry Entry) logf(lvl Level, format string, args ...any) {
	if !entry.mod.Enabled(lvl) {
		return
	}
	e := entry.log()
	switch lvl {
	case PanicLevel:
		e.Panicf(format, args...)
	case FatalLevel:
		e.Fatalf(format, args...)
	case ErrorLevel:
		e.Errorf(format, args...)
	case WarnLevel:
		e.Warnf(format, args...)
	case InfoLevel:
		e.Infof(format, args...)
	default:
		e.Debugf(format, args...)
	}
}

func (entry Entry) Debugf(format string, args ...any) { entry.logf(DebugLevel, format, args...) }
func (entry Entry) Infof(format string, args ...any)  { entry.logf(InfoLevel, format, args...) }
func (entry Entry) Warnf(format string, args ...any)  { entry.logf(WarnLevel, format, args...) }
func (entry Entry) Errorf(format string, args ...any) { entry.logf(ErrorLevel, format, args...) }
func (entry Entry) Fatalf(format string, args ...any) { entry.logf(FatalLevel, format, args...) }
func (entry Entry) Panicf(format string, args ...any) { entry.logf(PanicLevel, format, args...) }
