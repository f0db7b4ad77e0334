// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package reclog is the structured, subscribable logging sink used by
// the Recorder, the Recovery Driver and the recovery watcher. Entries
// are dispatched to live subscribers and, if a store is attached,
// persisted durably keyed by entry time plus a sequence number.
package reclog

// API inspired by zerolog https://github.com/rs/zerolog

import (
	"fmt"
	"sync"
	"time"
)

// Level defines an entry's severity.
type Level uint8

// Levels, ordered least to most severe.
const (
	LevelDebug Level = 16
	LevelInfo  Level = 24
	LevelWarn  Level = 32
	LevelError Level = 40
)

// UnixMillisecond is an entry timestamp.
type UnixMillisecond uint64

// Entry is one dispatched log record.
type Entry struct {
	Time  UnixMillisecond `json:"time"`
	Level Level           `json:"level"`
	Src   string          `json:"src"`
	Msg   string          `json:"msg"`
}

// Event builds an Entry before it's dispatched.
type Event struct {
	level  Level
	time   UnixMillisecond
	src    string
	logger *Logger
}

// Src sets the event's source component, e.g. "recorder" or "recovery".
func (e *Event) Src(src string) *Event {
	e.src = src
	return e
}

// Time overrides the event's timestamp; defaults to time.Now.
func (e *Event) Time(t time.Time) *Event {
	e.time = UnixMillisecond(t.UnixNano() / int64(time.Millisecond))
	return e
}

// Msg dispatches the event with msg as its message.
func (e *Event) Msg(msg string) {
	e.logger.dispatch(Entry{Time: e.time, Level: e.level, Src: e.src, Msg: msg})
}

// Msgf dispatches the event with a formatted message.
func (e *Event) Msgf(format string, v ...any) {
	e.Msg(fmt.Sprintf(format, v...))
}

// Feed is a read-only stream of entries.
type Feed <-chan Entry
type entryFeed chan Entry

// CancelFunc unsubscribes a feed obtained from Subscribe.
type CancelFunc func()

// Logger dispatches Entry values to subscribers. The zero value is not
// ready for use; construct with New. A nil *Logger is a valid no-op
// sink: every method on it tolerates a nil receiver.
type Logger struct {
	mu   sync.Mutex
	subs map[entryFeed]struct{}
}

// New returns a ready Logger with no subscribers.
func New() *Logger {
	return &Logger{subs: map[entryFeed]struct{}{}}
}

func (l *Logger) dispatch(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber; drop rather than block the recorder's
			// write path on a logging consumer.
		}
	}
}

// Subscribe returns a channel receiving every future Entry, and a
// CancelFunc that unsubscribes it.
func (l *Logger) Subscribe() (Feed, CancelFunc) {
	if l == nil {
		ch := make(entryFeed)
		return Feed((chan Entry)(ch)), func() {}
	}

	ch := make(entryFeed, 64)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
	return Feed((chan Entry)(ch)), cancel
}

func (l *Logger) event(level Level) *Event {
	return &Event{level: level, time: UnixMillisecond(time.Now().UnixNano() / int64(time.Millisecond)), logger: l}
}

// Debug starts a debug-level event.
func (l *Logger) Debug() *Event { return l.event(LevelDebug) }

// Info starts an info-level event.
func (l *Logger) Info() *Event { return l.event(LevelInfo) }

// Warn starts a warning-level event.
func (l *Logger) Warn() *Event { return l.event(LevelWarn) }

// Error starts an error-level event.
func (l *Logger) Error() *Event { return l.event(LevelError) }

// Event starts an event at an arbitrary level, used by callers that
// hold a Level value rather than calling Debug/Info/Warn/Error directly.
func (l *Logger) Event(level Level) *Event { return l.event(level) }

// Warnf is the minimal interface consumed by pkg/recovery.Logger: it
// dispatches a warn-level event with a formatted message and no
// explicit source.
func (l *Logger) Warnf(format string, args ...any) {
	l.event(LevelWarn).Msgf(format, args...)
}
