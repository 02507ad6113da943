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

/* Protocol selects which packet filter family a backend talks to */
type Protocol int

const (
	ProtocolIPv4 Protocol = iota
	ProtocolIPv6
)

func (p Protocol) String() string {
	if p == ProtocolIPv6 {
		return "v6"
	}
	return "v4"
}

/* Backend is the sink for synthesized rules. Operations between two
 * Commit calls form a transaction: implementations may buffer, but the
 * kernel must never observe a half-applied managed chain.
 *
 * AppendReplace leaves an identical rule in place instead of appending
 * a duplicate. This keeps the built-in to managed chain jumps
 * idempotent across reconciliations.
 */
type Backend interface {
	EnsureTable(table string) error
	NewChain(table, chain string) error
	FlushChain(table, chain string) error
	SetPolicy(table, chain, policy string) error
	Append(table, chain, rule string) error
	AppendReplace(table, chain, rule string) error
	Execute(table, raw string) error
	Commit() error
}
