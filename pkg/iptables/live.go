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
	"fmt"
	"os/exec"
	"strings"

	goipt "github.com/coreos/go-iptables/iptables"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/utils"
	"k8s.io/klog/v2"
)

/* Live applies every operation to the kernel as it arrives, through
 * the iptables binaries. It has no batching and therefore no
 * atomic-swap guarantee; it exists for hosts without the restore
 * binaries. Commit is a no-op.
 */
type Live struct {
	ipt *goipt.IPTables
	bin string
}

/* NewLive creates a direct backend for one protocol family */
func NewLive(proto Protocol) (*Live, error) {
	p := goipt.ProtocolIPv4
	bin := "iptables"
	if proto == ProtocolIPv6 {
		p = goipt.ProtocolIPv6
		bin = "ip6tables"
	}
	ipt, err := goipt.NewWithProtocol(p)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing %s: %v", types.ErrBackend, bin, err)
	}
	return &Live{ipt: ipt, bin: bin}, nil
}

func (l *Live) EnsureTable(table string) error {
	/* The xtables tables are fixed; nothing to create. */
	return nil
}

func (l *Live) NewChain(table, chain string) error {
	err := l.ipt.NewChain(table, chain)
	if err != nil && utils.IsChainExistsError(err) {
		klog.V(6).Infof("%s: chain %s/%s already exists", l.bin, table, chain)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: new chain %s/%s: %v", types.ErrBackend, table, chain, err)
	}
	return nil
}

func (l *Live) FlushChain(table, chain string) error {
	if err := l.ipt.ClearChain(table, chain); err != nil {
		return fmt.Errorf("%w: flush chain %s/%s: %v", types.ErrBackend, table, chain, err)
	}
	return nil
}

func (l *Live) SetPolicy(table, chain, policy string) error {
	if err := l.ipt.ChangePolicy(table, chain, policy); err != nil {
		return fmt.Errorf("%w: set policy %s/%s %s: %v", types.ErrBackend, table, chain, policy, err)
	}
	return nil
}

func (l *Live) Append(table, chain, rule string) error {
	if err := l.ipt.Append(table, chain, strings.Fields(rule)...); err != nil {
		return fmt.Errorf("%w: append %s/%s %q: %v", types.ErrBackend, table, chain, rule, err)
	}
	return nil
}

func (l *Live) AppendReplace(table, chain, rule string) error {
	if err := l.ipt.AppendUnique(table, chain, strings.Fields(rule)...); err != nil {
		return fmt.Errorf("%w: append_replace %s/%s %q: %v", types.ErrBackend, table, chain, rule, err)
	}
	return nil
}

/* Execute runs a raw rule line against a table. go-iptables has no
 * raw passthrough, so this shells out to the binary directly.
 */
func (l *Live) Execute(table, raw string) error {
	args := append([]string{"-t", table}, strings.Fields(raw)...)
	cmd := exec.Command(l.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: execute %s %q: %v: %s", types.ErrBackend, table, raw, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (l *Live) Commit() error {
	/* Operations were applied eagerly. */
	return nil
}
