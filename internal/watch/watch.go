// Package watch detects external modifications of the shader document.
//
// Detectors only answer "did it change since the last Sync"; they never diff
// content. Poller is the reference behaviour, Notifier trades the stat loop for
// fsnotify events and confirms them with the same stat comparison.
package watch

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Detector is satisfied by Poller and Notifier; reload.ChangeDetector is the
// consuming interface.
type Detector interface {
	// Changed reports a modification not yet seen. A reported change is
	// consumed: the next call returns false until the file changes again.
	Changed() bool
	// Sync records the current on-disk state as seen.
	Sync()
	Close() error
}

// Mode selects a Detector implementation.
type Mode uint8

const (
	ModePoll Mode = iota
	ModeNotify
)

// ParseMode converts a config or flag value.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "poll":
		return ModePoll, nil
	case "notify", "fsnotify":
		return ModeNotify, nil
	}
	return ModePoll, fmt.Errorf("invalid watch mode %q (expected poll|notify)", s)
}

func (m Mode) String() string {
	if m == ModeNotify {
		return "notify"
	}
	return "poll"
}

// New builds the detector for mode. interval only applies to polling.
func New(mode Mode, path string, interval time.Duration) (Detector, error) {
	switch mode {
	case ModeNotify:
		return NewNotifier(path)
	default:
		return NewPoller(path, interval), nil
	}
}

// stamp identifies one on-disk version of a file.
type stamp struct {
	mod    time.Time
	size   int64
	exists bool
}

func statStamp(path string) stamp {
	fi, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{mod: fi.ModTime(), size: fi.Size(), exists: true}
}

func (s stamp) equal(o stamp) bool {
	return s.exists == o.exists && s.size == o.size && s.mod.Equal(o.mod)
}
