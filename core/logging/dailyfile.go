package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultLogDir is the log directory used when none is configured.
const DefaultLogDir = "logs"

const dayFormat = "2006_01_02"

// FileName returns the log file name for a sink. Applications logging to the
// default directory use "<suffix>.log"; custom directories are usually shared
// so the application name is prepended.
func FileName(logDir, appName, suffix string) string {
	if logDir == DefaultLogDir || logDir == "" || appName == "" {
		return suffix + ".log"
	}
	return appName + "-" + suffix + ".log"
}

// DailyFile is a log file that rotates at the first write of each new day.
// The previous file is renamed to "<name>.<yyyy_mm_dd>".
type DailyFile struct {
	mu   sync.Mutex
	path string
	file *os.File
	day  string
	now  func() time.Time
}

// OpenDailyFile opens (or creates) dir/name for appending.
func OpenDailyFile(dir, name string) (*DailyFile, error) {
	return openDailyFile(dir, name, time.Now)
}

func openDailyFile(dir, name string, now func() time.Time) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	d := &DailyFile{path: filepath.Join(dir, name), now: now}

	day := now().Format(dayFormat)
	if info, err := os.Stat(d.path); err == nil {
		day = info.ModTime().Format(dayFormat)
	}
	if err := d.open(day); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the path of the active file.
func (d *DailyFile) Path() string { return d.path }

// Write appends p, rotating first if the day changed.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	if today := d.now().Format(dayFormat); today != d.day {
		if err := d.rotate(today); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// Close closes the active file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) rotate(today string) error {
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	d.file = nil
	if err := os.Rename(d.path, d.path+"."+d.day); err != nil {
		// keep appending to the unrotated file
		if oerr := d.open(today); oerr != nil {
			return errors.Join(fmt.Errorf("rotate log file: %w", err), oerr)
		}
		return fmt.Errorf("rotate log file: %w", err)
	}
	return d.open(today)
}

func (d *DailyFile) open(day string) error {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.file = f
	d.day = day
	return nil
}
