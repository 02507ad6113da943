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
package handler

import (
	"testing"

	"github.com/docker/docker/api/types/events"
	"github.com/stretchr/testify/assert"
)

func TestRelevantEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Message
		expected bool
	}{
		{
			name:     "Container start",
			event:    events.Message{Type: events.ContainerEventType, Action: "start"},
			expected: true,
		},
		{
			name:     "Container die",
			event:    events.Message{Type: events.ContainerEventType, Action: "die"},
			expected: true,
		},
		{
			name:     "Container destroy",
			event:    events.Message{Type: events.ContainerEventType, Action: "destroy"},
			expected: true,
		},
		{
			name:     "Container create is ignored",
			event:    events.Message{Type: events.ContainerEventType, Action: "create"},
			expected: false,
		},
		{
			name:     "Container exec is ignored",
			event:    events.Message{Type: events.ContainerEventType, Action: "exec_start"},
			expected: false,
		},
		{
			name:     "Network connect",
			event:    events.Message{Type: events.NetworkEventType, Action: "connect"},
			expected: true,
		},
		{
			name:     "Network disconnect",
			event:    events.Message{Type: events.NetworkEventType, Action: "disconnect"},
			expected: true,
		},
		{
			name:     "Network create is ignored",
			event:    events.Message{Type: events.NetworkEventType, Action: "create"},
			expected: false,
		},
		{
			name:     "Image events are ignored",
			event:    events.Message{Type: events.ImageEventType, Action: "pull"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RelevantEvent(tt.event))
		})
	}
}
