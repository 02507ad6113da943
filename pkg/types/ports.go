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
	"fmt"
	"strconv"
	"strings"
)

/* ExposePort is a single host-to-container port mapping.
 * The textual forms accepted are "N", "N:M" and either with a
 * "/tcp" or "/udp" suffix. Without a container port the host
 * port is reused; without a protocol tcp is assumed.
 */
type ExposePort struct {
	HostPort      uint16
	ContainerPort uint16
	Proto         Protocol
}

/* ParseExposePort parses the "host[:container][/proto]" form */
func ParseExposePort(s string) (ExposePort, error) {
	var ep ExposePort

	spec := s
	ep.Proto = DefaultProto
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		proto := Protocol(strings.ToLower(spec[idx+1:]))
		if !proto.Valid() {
			return ep, fmt.Errorf("%w: expose_port %q: unknown protocol %q", ErrPolicyParse, s, spec[idx+1:])
		}
		ep.Proto = proto
		spec = spec[:idx]
	}

	hostPart := spec
	containerPart := spec
	if idx := strings.Index(spec, ":"); idx >= 0 {
		hostPart = spec[:idx]
		containerPart = spec[idx+1:]
	}

	host, err := parsePort(hostPart)
	if err != nil {
		return ep, fmt.Errorf("%w: expose_port %q: %v", ErrPolicyParse, s, err)
	}
	container, err := parsePort(containerPart)
	if err != nil {
		return ep, fmt.Errorf("%w: expose_port %q: %v", ErrPolicyParse, s, err)
	}

	ep.HostPort = host
	ep.ContainerPort = container
	return ep, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("port must be non-zero")
	}
	return uint16(n), nil
}

/* UnmarshalText lets the TOML decoder accept the string forms directly */
func (ep *ExposePort) UnmarshalText(text []byte) error {
	parsed, err := ParseExposePort(string(text))
	if err != nil {
		return err
	}
	*ep = parsed
	return nil
}

/* MarshalText serializes back into the canonical "host:container/proto" form */
func (ep ExposePort) MarshalText() ([]byte, error) {
	return []byte(ep.String()), nil
}

func (ep ExposePort) String() string {
	return fmt.Sprintf("%d:%d/%s", ep.HostPort, ep.ContainerPort, ep.Proto)
}
