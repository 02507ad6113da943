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
package docker

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerFromSummary(t *testing.T) {
	summary := container.Summary{
		ID:     "c1aaaaaaaaaa",
		Names:  []string{"/web"},
		Labels: map[string]string{"role": "frontend"},
		NetworkSettings: &container.NetworkSettingsSummary{
			Networks: map[string]*network.EndpointSettings{
				"pub": {
					IPAddress:         "172.18.0.3",
					GlobalIPv6Address: "fd00::3",
					Aliases:           []string{"frontend"},
				},
			},
		},
	}

	snap := containerFromSummary(summary)
	assert.Equal(t, "c1aaaaaaaaaa", snap.ID)
	assert.Equal(t, "web", snap.Name)
	assert.Equal(t, map[string]string{"role": "frontend"}, snap.Labels)
	require.Len(t, snap.Networks, 1)
	assert.Equal(t, NetworkAttachment{
		NetworkName: "pub",
		IPv4:        "172.18.0.3",
		IPv6:        "fd00::3",
		Aliases:     []string{"frontend"},
	}, snap.Networks[0])
}

func TestContainerFromSummaryWithoutNetworks(t *testing.T) {
	snap := containerFromSummary(container.Summary{ID: "c2", Names: []string{"/lonely"}})
	assert.Equal(t, "lonely", snap.Name)
	assert.Empty(t, snap.Networks)
}

func TestNetworkFromInspect(t *testing.T) {
	inspect := network.Inspect{
		Name:   "pub",
		ID:     "0123456789abcdef",
		Driver: "bridge",
		Options: map[string]string{
			"com.docker.network.bridge.name": "br_pub",
		},
		IPAM: network.IPAM{
			Config: []network.IPAMConfig{
				{Subnet: "172.18.0.0/16"},
				{Subnet: "fd00::/64"},
			},
		},
	}

	snap, ok := networkFromInspect(inspect)
	require.True(t, ok)
	assert.Equal(t, "pub", snap.Name)
	assert.Equal(t, "br_pub", snap.BridgeInterface)
	assert.Equal(t, []string{"172.18.0.0/16"}, snap.SubnetsV4)
	assert.Equal(t, []string{"fd00::/64"}, snap.SubnetsV6)
}

func TestNetworkFromInspectDerivesBridgeName(t *testing.T) {
	snap, ok := networkFromInspect(network.Inspect{
		Name:   "inner",
		ID:     "fedcba9876543210",
		Driver: "bridge",
	})
	require.True(t, ok)
	assert.Equal(t, "br-fedcba987654", snap.BridgeInterface)
}

func TestNetworkFromInspectSkipsNonBridge(t *testing.T) {
	_, ok := networkFromInspect(network.Inspect{Name: "mesh", ID: "x", Driver: "overlay"})
	assert.False(t, ok)
}

func TestAttachmentLookup(t *testing.T) {
	snap := ContainerSnapshot{
		Networks: []NetworkAttachment{
			{NetworkName: "a", IPv4: "10.0.0.2"},
			{NetworkName: "b", IPv4: "10.0.1.2"},
		},
	}

	att, ok := snap.Attachment("b")
	require.True(t, ok)
	assert.Equal(t, "10.0.1.2", att.IPv4)

	_, ok = snap.Attachment("c")
	assert.False(t, ok)
}
