package log

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
	"gopkg.in/Sirupsen/logrus.v0"
)

type Level uint32

// Same ordering as logrus levels, lower is more severe.
const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

var disabled atomic.Bool

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   isTerminal(os.Stderr),
		FullTimestamp: false,
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetOutput changes the destination of all log entries.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
	if f, ok := w.(*os.File); ok {
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: isTerminal(f)})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	}
}

// Disable turns off all logging, including warnings and errors.
func Disable() {
	disabled.Store(true)
}

// Enable reverts a previous call to Disable.
func Enable() {
	disabled.Store(false)
}

// A Context adds fields to every log entry, for example the current
// simulation cycle.
type Context interface {
	AddLogContext(z *EntryZ)
}

var contexts atomic.Pointer[[]Context]

// AddContext registers c. It returns a function removing it.
func AddContext(c Context) (remove func()) {
	for {
		old := contexts.Load()
		var cur []Context
		if old != nil {
			cur = append(cur, (*old)...)
		}
		cur = append(cur, c)
		if contexts.CompareAndSwap(old, &cur) {
			break
		}
	}
	return func() {
		for {
			old := contexts.Load()
			if old == nil {
				return
			}
			var cur []Context
			for _, oc := range *old {
				if oc != c {
					cur = append(cur, oc)
				}
			}
			if contexts.CompareAndSwap(old, &cur) {
				return
			}
		}
	}
}

func loadContexts() []Context {
	if p := contexts.Load(); p != nil {
		return *p
	}
	return nil
}
