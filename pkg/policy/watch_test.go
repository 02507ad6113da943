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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReportsFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[container_to_host]\ndefault_policy = \"accept\"\n"), 0o644))

	changed := make(chan struct{}, 8)
	w := NewWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	w.Start()
	defer w.Stop()

	/* Give the watch a moment to establish before mutating the file. */
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[container_to_host]\ndefault_policy = \"drop\"\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(10 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[container_to_host]\ndefault_policy = \"accept\"\n"), 0o644))

	changed := make(chan struct{}, 8)
	w := NewWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))

	select {
	case <-changed:
		t.Fatal("unrelated file must not trigger a change")
	case <-time.After(500 * time.Millisecond):
	}
}
