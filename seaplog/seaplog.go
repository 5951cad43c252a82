// Package seaplog mirrors the teacher's clog package shape (a LogProvider
// interface plus a Clog wrapper gated by an atomic enable flag) with its
// default provider backed by logrus instead of the standard library
// logger.
package seaplog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogProvider is the pluggable backend Clog dispatches to.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog gates a LogProvider behind an atomic enable flag so call sites can
// log unconditionally and pay for formatting only when enabled.
type Clog struct {
	provider LogProvider
	has      uint32
}

// NewLogger returns a Clog backed by a logrus.Logger tagged with prefix.
func NewLogger(prefix string) Clog {
	l := logrus.New()
	// Clog's enable flag is the only gate; logrus passes every level.
	l.SetLevel(logrus.DebugLevel)
	return Clog{provider: logrusProvider{entry: l.WithField("component", prefix)}}
}

// LogMode enables or disables output.
func (c *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&c.has, 1)
	} else {
		atomic.StoreUint32(&c.has, 0)
	}
}

// SetLogProvider swaps the backend, ignoring a nil provider.
func (c *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		c.provider = p
	}
}

func (c Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Critical(format, v...)
	}
}

func (c Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Error(format, v...)
	}
}

func (c Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Warn(format, v...)
	}
}

func (c Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Debug(format, v...)
	}
}

// logrusProvider adapts a logrus entry to LogProvider. There is no
// logrus level between Error and Fatal that doesn't also terminate the
// process, so Critical logs at Error with an extra field marking it.
type logrusProvider struct {
	entry *logrus.Entry
}

var _ LogProvider = logrusProvider{}

func (p logrusProvider) Critical(format string, v ...interface{}) {
	p.entry.WithField("level", "critical").Errorf(format, v...)
}

func (p logrusProvider) Error(format string, v ...interface{}) {
	p.entry.Errorf(format, v...)
}

func (p logrusProvider) Warn(format string, v ...interface{}) {
	p.entry.Warnf(format, v...)
}

func (p logrusProvider) Debug(format string, v ...interface{}) {
	p.entry.Debugf(format, v...)
}
