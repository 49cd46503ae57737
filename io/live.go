package io

import (
	"os"
	"sync"
	"time"
)

// LiveConfig is a configuration file which is re-read whenever its
// modification time changes, so that some parameters can be changed while a
// bake is running.
type LiveConfig struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	current *BakeWrapper
}

// NewLiveConfig starts watching the file at path, which current was read
// from.
func NewLiveConfig(path string, current *BakeWrapper) (*LiveConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &LiveConfig{
		path: path, modTime: info.ModTime(), current: current,
	}, nil
}

// Current returns the latest valid configuration. If the file has changed
// but can no longer be read or checked, the previous configuration is
// returned along with the error.
func (lc *LiveConfig) Current() (*BakeWrapper, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	info, err := os.Stat(lc.path)
	if err != nil {
		return lc.current, err
	}
	if info.ModTime().Equal(lc.modTime) {
		return lc.current, nil
	}

	w, err := ReadBakeConfig(lc.path)
	if err != nil {
		return lc.current, err
	}
	lc.current, lc.modTime = w, info.ModTime()
	return w, nil
}
