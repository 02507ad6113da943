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

func TestRecorderTranscript(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.NewChain("filter", "DFWRS_INPUT"))
	require.NoError(t, r.FlushChain("filter", "DFWRS_INPUT"))
	require.NoError(t, r.SetPolicy("filter", "INPUT", "DROP"))
	require.NoError(t, r.Append("filter", "DFWRS_FORWARD", "-i docker0 -o docker0 -j DROP"))
	require.NoError(t, r.AppendReplace("filter", "INPUT", "-j DFWRS_INPUT"))
	require.NoError(t, r.Execute("filter", "-A INPUT -i lo -j ACCEPT"))
	require.NoError(t, r.Commit())

	assert.Equal(t, []string{
		"create_chain\tfilter DFWRS_INPUT",
		"flush_chain\tfilter DFWRS_INPUT",
		"set_policy\tfilter INPUT DROP",
		"append\tfilter DFWRS_FORWARD -i docker0 -o docker0 -j DROP",
		"append_replace\tfilter INPUT -j DFWRS_INPUT",
		"execute\tfilter -A INPUT -i lo -j ACCEPT",
		"commit",
	}, r.Transcript())
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Commit())
	require.NotEmpty(t, r.Transcript())

	r.Reset()
	assert.Empty(t, r.Transcript())
}

func TestRecorderTranscriptIsACopy(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Commit())

	first := r.Transcript()
	first[0] = "mutated"
	assert.Equal(t, []string{"commit"}, r.Transcript())
}
