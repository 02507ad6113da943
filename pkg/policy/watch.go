/**
 * Copyright 2025 The dfw-ipt-bridge Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package policy

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

const pollFallbackInterval = 5 * time.Second

/* Watcher reports policy file changes through a callback. It prefers
 * an inotify watch on the containing directory (editors replace files
 * by rename, which a direct file watch misses) and falls back to
 * mtime polling when the watch cannot be established.
 */
type Watcher struct {
	path     string
	onChange func()
	stopCh   chan struct{}
}

func NewWatcher(path string, onChange func()) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
}

/* Start launches the watch goroutine */
func (w *Watcher) Start() {
	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		watchTarget := w.path
		if info, statErr := os.Stat(w.path); statErr == nil && !info.IsDir() {
			watchTarget = filepath.Dir(w.path)
		}
		if err = fsw.Add(watchTarget); err == nil {
			klog.V(2).Infof("Watching %s for policy changes", watchTarget)
			go w.runNotify(fsw)
			return
		}
		_ = fsw.Close()
	}

	klog.Warningf("Filesystem watch unavailable (%v), falling back to polling %s", err, w.path)
	go w.runPoll()
}

/* Stop terminates the watch goroutine */
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) runNotify(fsw *fsnotify.Watcher) {
	defer fsw.Close()
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			klog.V(4).Infof("Policy change detected: %s %s", ev.Op, ev.Name)
			w.onChange()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			klog.Warningf("Policy watch error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	if info, err := os.Stat(w.path); err == nil && info.IsDir() {
		return filepath.Ext(ev.Name) == ".toml"
	}
	return filepath.Clean(ev.Name) == filepath.Clean(w.path)
}

func (w *Watcher) runPoll() {
	ticker := time.NewTicker(pollFallbackInterval)
	defer ticker.Stop()

	last := w.mtime()
	for {
		select {
		case <-ticker.C:
			current := w.mtime()
			if !current.Equal(last) {
				last = current
				klog.V(4).Infof("Policy change detected by polling: %s", w.path)
				w.onChange()
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) mtime() time.Time {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}
	}
	if !info.IsDir() {
		return info.ModTime()
	}
	/* For fragment directories, take the newest fragment mtime. */
	newest := info.ModTime()
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return newest
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		if fi, err := entry.Info(); err == nil && fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}
	return newest
}
