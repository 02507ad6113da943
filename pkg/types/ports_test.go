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
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExposePort(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ExposePort
	}{
		{
			name:     "Bare port",
			input:    "80",
			expected: ExposePort{HostPort: 80, ContainerPort: 80, Proto: TCPProto},
		},
		{
			name:     "Port with protocol",
			input:    "443/tcp",
			expected: ExposePort{HostPort: 443, ContainerPort: 443, Proto: TCPProto},
		},
		{
			name:     "Host to container mapping with protocol",
			input:    "5353:53/udp",
			expected: ExposePort{HostPort: 5353, ContainerPort: 53, Proto: UDPProto},
		},
		{
			name:     "Host to container mapping without protocol",
			input:    "8080:80",
			expected: ExposePort{HostPort: 8080, ContainerPort: 80, Proto: TCPProto},
		},
		{
			name:     "Upper case protocol",
			input:    "53/UDP",
			expected: ExposePort{HostPort: 53, ContainerPort: 53, Proto: UDPProto},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseExposePort(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ep)
		})
	}
}

func TestParseExposePortErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "Empty", input: ""},
		{name: "Unknown protocol", input: "80/icmp"},
		{name: "Not a number", input: "http"},
		{name: "Zero port", input: "0"},
		{name: "Port out of range", input: "70000"},
		{name: "Negative port", input: "-1"},
		{name: "Empty container port", input: "80:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExposePort(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPolicyParse)
		})
	}
}

func TestExposePortRoundTrip(t *testing.T) {
	ep, err := ParseExposePort("5353:53/udp")
	require.NoError(t, err)

	text, err := ep.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5353:53/udp", string(text))

	var back ExposePort
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, ep, back)
}
