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

import "fmt"

/* Policy is the parsed firewall document. Validation here is purely
 * structural: container and network references are resolved lazily on
 * every reconciliation pass because Docker state changes underneath us.
 */
type Policy struct {
	Defaults              *Defaults              `toml:"defaults,omitempty"`
	ContainerToContainer  *ContainerToContainer  `toml:"container_to_container,omitempty"`
	ContainerToWiderWorld *ContainerToWiderWorld `toml:"container_to_wider_world,omitempty"`
	ContainerToHost       *ContainerToHost       `toml:"container_to_host,omitempty"`
	WiderWorldToContainer *WiderWorldToContainer `toml:"wider_world_to_container,omitempty"`
	ContainerDNAT         *ContainerDNAT         `toml:"container_dnat,omitempty"`
}

/* Defaults carries kernel default policies, table pre-creation hints
 * and the per-family raw initialization rules.
 */
type Defaults struct {
	CustomTables         []string        `toml:"custom_tables,omitempty"`
	Initialization       *Initialization `toml:"initialization,omitempty"`
	DefaultInputPolicy   Action          `toml:"default_input_policy,omitempty"`
	DefaultForwardPolicy Action          `toml:"default_forward_policy,omitempty"`
	DefaultOutputPolicy  Action          `toml:"default_output_policy,omitempty"`
}

/* Initialization rules never survive a reconciliation: the managed
 * chains are flushed first, so they are re-applied verbatim every pass.
 */
type Initialization struct {
	V4 []string `toml:"v4,omitempty"`
	V6 []string `toml:"v6,omitempty"`
}

type ContainerToContainer struct {
	DefaultPolicy Action                     `toml:"default_policy,omitempty"`
	Rules         []ContainerToContainerRule `toml:"rules,omitempty"`
}

type ContainerToContainerRule struct {
	Network      string `toml:"network"`
	SrcContainer string `toml:"src_container,omitempty"`
	DstContainer string `toml:"dst_container,omitempty"`
	Filter       string `toml:"filter,omitempty"`
	Action       Action `toml:"action"`
}

type ContainerToWiderWorld struct {
	DefaultPolicy            Action                      `toml:"default_policy,omitempty"`
	ExternalNetworkInterface string                      `toml:"external_network_interface,omitempty"`
	Rules                    []ContainerToWiderWorldRule `toml:"rules,omitempty"`
}

type ContainerToWiderWorldRule struct {
	Network                  string `toml:"network,omitempty"`
	SrcContainer             string `toml:"src_container,omitempty"`
	Filter                   string `toml:"filter,omitempty"`
	ExternalNetworkInterface string `toml:"external_network_interface,omitempty"`
	Action                   Action `toml:"action"`
}

type ContainerToHost struct {
	DefaultPolicy Action                `toml:"default_policy,omitempty"`
	Rules         []ContainerToHostRule `toml:"rules,omitempty"`
}

type ContainerToHostRule struct {
	Network      string `toml:"network"`
	SrcContainer string `toml:"src_container,omitempty"`
	Filter       string `toml:"filter,omitempty"`
	Action       Action `toml:"action"`
}

type WiderWorldToContainer struct {
	Rules []WiderWorldToContainerRule `toml:"rules,omitempty"`
}

type WiderWorldToContainerRule struct {
	Network                  string       `toml:"network"`
	DstContainer             string       `toml:"dst_container"`
	ExposePorts              []ExposePort `toml:"expose_port"`
	ExternalNetworkInterface string       `toml:"external_network_interface,omitempty"`
}

type ContainerDNAT struct {
	Rules []ContainerDNATRule `toml:"rules,omitempty"`
}

type ContainerDNATRule struct {
	SrcNetwork   string     `toml:"src_network,omitempty"`
	SrcContainer string     `toml:"src_container,omitempty"`
	DstNetwork   string     `toml:"dst_network"`
	DstContainer string     `toml:"dst_container"`
	ExposePort   ExposePort `toml:"expose_port"`
}

/* Validate performs the structural checks: closed action/protocol sets
 * and required fields. Missing container or network references are
 * never an error here.
 */
func (p *Policy) Validate() error {
	if p.Defaults != nil {
		for chain, action := range map[string]Action{
			BuiltinInput:   p.Defaults.DefaultInputPolicy,
			BuiltinForward: p.Defaults.DefaultForwardPolicy,
			BuiltinOutput:  p.Defaults.DefaultOutputPolicy,
		} {
			if action != "" && !action.Valid() {
				return fmt.Errorf("%w: defaults: default policy for %s: invalid action %q", ErrPolicyParse, chain, action)
			}
		}
	}

	if s := p.ContainerToContainer; s != nil {
		if s.DefaultPolicy != "" && !s.DefaultPolicy.Valid() {
			return fmt.Errorf("%w: container_to_container: invalid default_policy %q", ErrPolicyParse, s.DefaultPolicy)
		}
		for i, r := range s.Rules {
			if r.Network == "" {
				return fmt.Errorf("%w: container_to_container.rules[%d]: network is required", ErrPolicyParse, i)
			}
			if !r.Action.Valid() {
				return fmt.Errorf("%w: container_to_container.rules[%d]: invalid action %q", ErrPolicyParse, i, r.Action)
			}
		}
	}

	if s := p.ContainerToWiderWorld; s != nil {
		if s.DefaultPolicy != "" && !s.DefaultPolicy.Valid() {
			return fmt.Errorf("%w: container_to_wider_world: invalid default_policy %q", ErrPolicyParse, s.DefaultPolicy)
		}
		for i, r := range s.Rules {
			if !r.Action.Valid() {
				return fmt.Errorf("%w: container_to_wider_world.rules[%d]: invalid action %q", ErrPolicyParse, i, r.Action)
			}
		}
	}

	if s := p.ContainerToHost; s != nil {
		if s.DefaultPolicy != "" && !s.DefaultPolicy.Valid() {
			return fmt.Errorf("%w: container_to_host: invalid default_policy %q", ErrPolicyParse, s.DefaultPolicy)
		}
		for i, r := range s.Rules {
			if r.Network == "" {
				return fmt.Errorf("%w: container_to_host.rules[%d]: network is required", ErrPolicyParse, i)
			}
			if !r.Action.Valid() {
				return fmt.Errorf("%w: container_to_host.rules[%d]: invalid action %q", ErrPolicyParse, i, r.Action)
			}
		}
	}

	if s := p.WiderWorldToContainer; s != nil {
		for i, r := range s.Rules {
			if r.Network == "" {
				return fmt.Errorf("%w: wider_world_to_container.rules[%d]: network is required", ErrPolicyParse, i)
			}
			if r.DstContainer == "" {
				return fmt.Errorf("%w: wider_world_to_container.rules[%d]: dst_container is required", ErrPolicyParse, i)
			}
			if len(r.ExposePorts) == 0 {
				return fmt.Errorf("%w: wider_world_to_container.rules[%d]: expose_port is required", ErrPolicyParse, i)
			}
		}
	}

	if s := p.ContainerDNAT; s != nil {
		for i, r := range s.Rules {
			if r.DstNetwork == "" {
				return fmt.Errorf("%w: container_dnat.rules[%d]: dst_network is required", ErrPolicyParse, i)
			}
			if r.DstContainer == "" {
				return fmt.Errorf("%w: container_dnat.rules[%d]: dst_container is required", ErrPolicyParse, i)
			}
			if r.ExposePort.HostPort == 0 {
				return fmt.Errorf("%w: container_dnat.rules[%d]: expose_port is required", ErrPolicyParse, i)
			}
		}
	}

	return nil
}
