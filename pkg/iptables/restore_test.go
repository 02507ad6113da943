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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreSetPolicy(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.SetPolicy("nat", "TEST_CHAIN", "DROP"))

	assert.Equal(t, []string{
		"*nat",
		":TEST_CHAIN DROP [0:0]",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreAppend(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.Append("filter", "TEST_CHAIN", "-s 10.0.0.1 -j ACCEPT"))

	assert.Equal(t, []string{
		"*filter",
		":TEST_CHAIN - [0:0]",
		"-A TEST_CHAIN -s 10.0.0.1 -j ACCEPT",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreDoubleAppend(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.Append("filter", "TEST_CHAIN", "-s 10.0.0.1 -j ACCEPT"))
	require.NoError(t, r.Append("filter", "TEST_CHAIN", "-s 10.0.0.1 -j ACCEPT"))

	assert.Equal(t, []string{
		"*filter",
		":TEST_CHAIN - [0:0]",
		"-A TEST_CHAIN -s 10.0.0.1 -j ACCEPT",
		"-A TEST_CHAIN -s 10.0.0.1 -j ACCEPT",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreDoubleAppendReplace(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.AppendReplace("filter", "TEST_CHAIN", "-s 10.0.0.1 -j ACCEPT"))
	require.NoError(t, r.AppendReplace("filter", "TEST_CHAIN", "-s 10.0.0.1 -j ACCEPT"))

	assert.Equal(t, []string{
		"*filter",
		":TEST_CHAIN - [0:0]",
		"-A TEST_CHAIN -s 10.0.0.1 -j ACCEPT",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreNewChainThenFlush(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.NewChain("filter", "DFWRS_INPUT"))
	require.NoError(t, r.FlushChain("filter", "DFWRS_INPUT"))

	assert.Equal(t, []string{
		"*filter",
		":DFWRS_INPUT - [0:0]",
		"-F DFWRS_INPUT",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreTablesSorted(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.Append("nat", "DFWRS_PREROUTING", "-j RETURN"))
	require.NoError(t, r.Append("filter", "DFWRS_INPUT", "-j RETURN"))

	rules := r.Rules()
	require.NotEmpty(t, rules)
	/* filter block before nat block regardless of call order */
	assert.Equal(t, "*filter", rules[0])
	assert.Contains(t, rules, "*nat")
}

func TestRestoreExecuteRaw(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.Execute("filter", "-A INPUT -i lo -j ACCEPT"))

	assert.Equal(t, []string{
		"*filter",
		"-A INPUT -i lo -j ACCEPT",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreEnsureTable(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	require.NoError(t, r.EnsureTable("mangle"))

	assert.Equal(t, []string{
		"*mangle",
		"COMMIT",
	}, r.Rules())
}

func TestRestoreEmptyBufferCommit(t *testing.T) {
	r := NewRestore(ProtocolIPv4)
	/* Nothing buffered: commit must not spawn the binary and must succeed. */
	assert.NoError(t, r.Commit())
	assert.Empty(t, r.Rules())
}
