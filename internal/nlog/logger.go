// Package nlog is the app's subsystem logger: one log file per subsystem
// under a common directory, written by a single background goroutine so
// callers never block on disk.
package nlog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

type Logger interface {
	Logf(format string, v ...any)
}

type subsystemLogger struct {
	name   string
	logger *AppLogger
}

func (s *subsystemLogger) Logf(format string, v ...any) {
	s.logger.Logf(s.name, format, v...)
}

type logEntry struct {
	name      string
	formatted string
}

type AppLogger struct {
	dir string

	fileMapper map[string]*os.File
	logMapper  map[string]*log.Logger

	lock           sync.RWMutex
	seq            atomic.Uint64
	currentLogFunc func(*log.Logger, string, ...any)

	inbox chan logEntry
}

func NewAppLogger(dir string, logging bool) (*AppLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	a := &AppLogger{
		dir:            dir,
		fileMapper:     make(map[string]*os.File),
		logMapper:      make(map[string]*log.Logger),
		currentLogFunc: nilLogf,
		inbox:          make(chan logEntry, 600),
	}
	if logging {
		a.currentLogFunc = defaultLogf
	}
	return a, nil
}

// RegisterSubsystem opens (truncating) the subsystem's log file and
// returns the logger to hand to that subsystem.
func (a *AppLogger) RegisterSubsystem(name string) (Logger, error) {
	file, err := os.OpenFile(filepath.Join(a.dir, name+".log"), os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}

	a.lock.Lock()
	defer a.lock.Unlock()
	a.logMapper[name] = log.New(file, fmt.Sprintf("[%s]: ", name), log.Ldate|log.Ltime)
	a.fileMapper[name] = file
	return &subsystemLogger{name, a}, nil
}

func (a *AppLogger) EnableLogging() {
	a.lock.Lock()
	a.currentLogFunc = defaultLogf
	a.lock.Unlock()
}

func (a *AppLogger) DisableLogging() {
	a.lock.Lock()
	a.currentLogFunc = nilLogf
	a.lock.Unlock()
}

func (a *AppLogger) Logf(name, format string, v ...any) {
	a.inbox <- logEntry{name, fmt.Sprintf(fmt.Sprintf("{%d}. %s", a.seq.Add(1), format), v...)}
}

func (a *AppLogger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			a.actualWrite(msg.name, msg.formatted)
		}
	}
}

func (a *AppLogger) actualWrite(name, formatted string) error {
	a.lock.Lock()
	logFunc := a.currentLogFunc
	logger, ok := a.logMapper[name]
	a.lock.Unlock()

	if !ok {
		return fmt.Errorf("Logger is not setup for this subsystem {%s}", name)
	}
	if logFunc != nil {
		logFunc(logger, formatted)
	}
	return nil
}

func (a *AppLogger) CloseAll() {
	a.lock.Lock()
	defer a.lock.Unlock()

	for _, file := range a.fileMapper {
		file.Sync()
		file.Close()
	}
	clear(a.fileMapper)
	clear(a.logMapper)
}

// Discard is the no-op logger tests pass where output does not matter.
var Discard Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Logf(string, ...any) {}

func defaultLogf(l *log.Logger, format string, a ...any) {
	l.Printf(format, a...)
}

func nilLogf(*log.Logger, string, ...any) {}
