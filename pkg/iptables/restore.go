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
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
	"k8s.io/klog/v2"
)

/* Restore buffers every operation into the iptables-restore text
 * format and pipes the whole batch to iptables-restore (or
 * ip6tables-restore) on Commit. The kernel swaps the touched tables
 * atomically, so concurrent packet processing sees either the old or
 * the new ruleset, never an empty managed chain.
 *
 * Rules that are not part of the managed chains but live in a touched
 * table are recreated from scratch on every commit; custom rules
 * belong in the policy's initialization section.
 */
type Restore struct {
	cmd string

	mu     sync.Mutex
	tables map[string]*tableBuffer
}

type bufferedRule struct {
	chain string /* empty for raw execute lines */
	text  string
}

type tableBuffer struct {
	policies map[string]string
	rules    []bufferedRule
}

/* NewRestore creates a buffered backend for one protocol family */
func NewRestore(proto Protocol) *Restore {
	cmd := "iptables-restore"
	if proto == ProtocolIPv6 {
		cmd = "ip6tables-restore"
	}
	return &Restore{
		cmd:    cmd,
		tables: make(map[string]*tableBuffer),
	}
}

func (r *Restore) table(name string) *tableBuffer {
	tb, ok := r.tables[name]
	if !ok {
		tb = &tableBuffer{policies: make(map[string]string)}
		r.tables[name] = tb
	}
	return tb
}

func (r *Restore) EnsureTable(table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(table)
	return nil
}

/* NewChain maps onto the ":CHAIN - [0:0]" header line, which both
 * creates the chain and sets its default policy.
 */
func (r *Restore) NewChain(table, chain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb := r.table(table)
	if _, ok := tb.policies[chain]; !ok {
		tb.policies[chain] = "-"
	}
	return nil
}

/* FlushChain is implicit for a freshly restored table; the explicit
 * "-F CHAIN" line keeps the batch self-describing.
 */
func (r *Restore) FlushChain(table, chain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb := r.table(table)
	if _, ok := tb.policies[chain]; !ok {
		tb.policies[chain] = "-"
	}
	tb.rules = append(tb.rules, bufferedRule{chain: chain, text: "-F " + chain})
	return nil
}

func (r *Restore) SetPolicy(table, chain, policy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(table).policies[chain] = policy
	return nil
}

func (r *Restore) Append(table, chain, rule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb := r.table(table)
	if _, ok := tb.policies[chain]; !ok {
		tb.policies[chain] = "-"
	}
	tb.rules = append(tb.rules, bufferedRule{chain: chain, text: "-A " + chain + " " + rule})
	return nil
}

func (r *Restore) AppendReplace(table, chain, rule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb := r.table(table)
	text := "-A " + chain + " " + rule
	for _, existing := range tb.rules {
		if existing.chain == chain && existing.text == text {
			return nil
		}
	}
	if _, ok := tb.policies[chain]; !ok {
		tb.policies[chain] = "-"
	}
	tb.rules = append(tb.rules, bufferedRule{chain: chain, text: text})
	return nil
}

func (r *Restore) Execute(table, raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb := r.table(table)
	tb.rules = append(tb.rules, bufferedRule{text: raw})
	return nil
}

/* Rules renders the current buffer as iptables-restore input lines.
 * Tables and chain headers are sorted so the output is deterministic.
 */
func (r *Restore) Rules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var buf bytes.Buffer
	r.writeRules(&buf)
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (r *Restore) writeRules(w io.Writer) {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tb := r.tables[name]
		fmt.Fprintf(w, "*%s\n", name)
		chains := make([]string, 0, len(tb.policies))
		for chain := range tb.policies {
			chains = append(chains, chain)
		}
		sort.Strings(chains)
		for _, chain := range chains {
			fmt.Fprintf(w, ":%s %s [0:0]\n", chain, tb.policies[chain])
		}
		for _, rule := range tb.rules {
			fmt.Fprintf(w, "%s\n", rule.text)
		}
		fmt.Fprintf(w, "COMMIT\n")
	}
}

/* Commit pipes the buffered batch into the restore binary and resets
 * the buffer. A non-zero exit leaves the previously committed kernel
 * state intact and surfaces as a backend error.
 */
func (r *Restore) Commit() error {
	return r.commit(context.Background())
}

/* CommitContext is Commit bounded by the rebuild deadline */
func (r *Restore) CommitContext(ctx context.Context) error {
	return r.commit(ctx)
}

func (r *Restore) commit(ctx context.Context) error {
	r.mu.Lock()
	var input bytes.Buffer
	r.writeRules(&input)
	batch := input.String()
	r.tables = make(map[string]*tableBuffer)
	r.mu.Unlock()

	if strings.TrimSpace(batch) == "" {
		klog.V(5).Infof("%s: empty batch, nothing to commit", r.cmd)
		return nil
	}

	klog.V(6).Infof("%s: committing %d bytes", r.cmd, len(batch))
	cmd := exec.CommandContext(ctx, r.cmd)
	cmd.Stdin = strings.NewReader(batch)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s interrupted: %v", types.ErrRebuildTimeout, r.cmd, ctx.Err())
		}
		return fmt.Errorf("%w: %s failed: %v: %s", types.ErrBackend, r.cmd, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
