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
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/utils"
)

/* NetworkAttachment is one container endpoint on one network, with at
 * most one address per family.
 */
type NetworkAttachment struct {
	NetworkName string
	IPv4        string
	IPv6        string
	Aliases     []string
}

/* ContainerSnapshot is the pass-local view of one running container */
type ContainerSnapshot struct {
	ID       string
	Name     string
	Labels   map[string]string
	Networks []NetworkAttachment
}

/* NetworkSnapshot is the pass-local view of one bridge network */
type NetworkSnapshot struct {
	Name            string
	ID              string
	BridgeInterface string
	SubnetsV4       []string
	SubnetsV6       []string
}

/* Attachment returns the container's endpoint on the named network */
func (c *ContainerSnapshot) Attachment(networkName string) (NetworkAttachment, bool) {
	for _, att := range c.Networks {
		if att.NetworkName == networkName {
			return att, true
		}
	}
	return NetworkAttachment{}, false
}

/* containerFromSummary maps the Docker API shape onto the snapshot */
func containerFromSummary(c container.Summary) ContainerSnapshot {
	snap := ContainerSnapshot{
		ID:     c.ID,
		Labels: c.Labels,
	}
	if len(c.Names) > 0 {
		/* The API reports names with a leading slash. */
		snap.Name = strings.TrimPrefix(c.Names[0], "/")
	}
	if c.NetworkSettings == nil {
		return snap
	}
	for name, ep := range c.NetworkSettings.Networks {
		if ep == nil {
			continue
		}
		snap.Networks = append(snap.Networks, NetworkAttachment{
			NetworkName: name,
			IPv4:        ep.IPAddress,
			IPv6:        ep.GlobalIPv6Address,
			Aliases:     ep.Aliases,
		})
	}
	return snap
}

/* networkFromInspect maps a Docker network onto the snapshot. Only
 * bridge networks have a host interface; anything else is dropped and
 * rules referencing it are skipped downstream.
 */
func networkFromInspect(n network.Inspect) (NetworkSnapshot, bool) {
	if n.Driver != "bridge" {
		return NetworkSnapshot{}, false
	}
	snap := NetworkSnapshot{
		Name:            n.Name,
		ID:              n.ID,
		BridgeInterface: utils.BridgeInterfaceName(n.ID, n.Options),
	}
	for _, cfg := range n.IPAM.Config {
		if cfg.Subnet == "" {
			continue
		}
		if strings.Contains(cfg.Subnet, ":") {
			snap.SubnetsV6 = append(snap.SubnetsV6, cfg.Subnet)
		} else {
			snap.SubnetsV4 = append(snap.SubnetsV4, cfg.Subnet)
		}
	}
	return snap, true
}
