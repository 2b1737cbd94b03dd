// Package proclock provides a cross-process exclusive lock backed by a
// file, with PID-liveness stale-lock recovery. It guarantees at most one
// watcher instance per machine even across process crashes.
package proclock

import (
	"encoding/json"
	"os"
	"sync"
	"syscall"
	"time"
)

// Record is the persisted lock content: owner process and acquisition
// time. Stored as human-readable JSON for diagnostics.
type Record struct {
	PID        int   `json:"pid"`
	AcquiredAt int64 `json:"ts"` // unix seconds
}

// Lock is a file-based mutual exclusion primitive.
//
// Acquisition first clears a stale record left by a dead owner, then
// performs an atomic create-exclusive of the lock file, then takes an OS
// advisory lock on it as defense against a second racer slipping between
// the staleness check and the exclusive create.
type Lock struct {
	path string

	mu sync.Mutex // guards f; Acquire and Release may race across goroutines
	f  *os.File

	// Injectable for tests.
	Now   func() time.Time
	Alive func(pid int) bool
}

// New returns an unheld lock at path.
func New(path string) *Lock {
	return &Lock{path: path, Now: time.Now, Alive: pidAlive}
}

// Acquire attempts to take the lock. Any failure, including a live owner
// elsewhere, reports false; acquisition is never a fatal error.
func (l *Lock) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f != nil {
		return false // already held by this Lock
	}

	l.removeIfStale()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(l.path)
		return false
	}

	rec := Record{PID: os.Getpid(), AcquiredAt: l.Now().Unix()}
	data, _ := json.Marshal(rec)
	if _, err := f.Write(data); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		os.Remove(l.path)
		return false
	}

	l.f = f
	return true
}

// Release drops the advisory lock, closes the handle and deletes the
// lock file. Idempotent and safe to call concurrently; exactly one
// caller performs the unlock/close/remove.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return
	}
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	l.f.Close()
	l.f = nil
	os.Remove(l.path)
}

// Held reports whether this process currently holds the lock.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f != nil
}

// ReadInfo returns the persisted lock record, if any.
func (l *Lock) ReadInfo() (Record, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// removeIfStale deletes the lock file when its owner is no longer alive
// or its record is unreadable.
func (l *Lock) removeIfStale() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.PID <= 0 {
		os.Remove(l.path)
		return
	}
	if !l.Alive(rec.PID) {
		os.Remove(l.path)
	}
}

// pidAlive probes process existence with signal 0.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
