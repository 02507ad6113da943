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
package iptables

import (
	"fmt"
	"strings"
	"sync"
)

/* Recorder logs every backend call into a transcript instead of
 * touching the kernel. Used by --dry-run and by the test suite.
 *
 * Transcript lines are tab-separated: "<op>\t<table> <chain> <rule>",
 * with a bare "commit" line per commit.
 */
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(op string, fields ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	joined := strings.TrimSpace(strings.Join(fields, " "))
	if joined == "" {
		r.lines = append(r.lines, op)
		return
	}
	r.lines = append(r.lines, op+"\t"+joined)
}

func (r *Recorder) EnsureTable(table string) error {
	r.record("ensure_table", table)
	return nil
}

func (r *Recorder) NewChain(table, chain string) error {
	r.record("create_chain", table, chain)
	return nil
}

func (r *Recorder) FlushChain(table, chain string) error {
	r.record("flush_chain", table, chain)
	return nil
}

func (r *Recorder) SetPolicy(table, chain, policy string) error {
	r.record("set_policy", table, chain, policy)
	return nil
}

func (r *Recorder) Append(table, chain, rule string) error {
	r.record("append", table, chain, rule)
	return nil
}

func (r *Recorder) AppendReplace(table, chain, rule string) error {
	r.record("append_replace", table, chain, rule)
	return nil
}

func (r *Recorder) Execute(table, raw string) error {
	r.record("execute", table, raw)
	return nil
}

func (r *Recorder) Commit() error {
	r.record("commit")
	return nil
}

/* Transcript returns a copy of the recorded lines */
func (r *Recorder) Transcript() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

/* Reset clears the transcript */
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

func (r *Recorder) String() string {
	return fmt.Sprintf("%s\n", strings.Join(r.Transcript(), "\n"))
}
