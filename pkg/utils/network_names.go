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
package utils

const (
	bridgeNameOption = "com.docker.network.bridge.name"
	bridgePrefix     = "br-"
	bridgeIDLen      = 12
)

/* BridgeInterfaceName derives the host-visible interface for a Docker
 * bridge network. The daemon names user bridges "br-" plus the first
 * twelve characters of the network ID unless the bridge name option
 * overrides it (the default bridge sets it to "docker0").
 */
func BridgeInterfaceName(networkID string, options map[string]string) string {
	if name, ok := options[bridgeNameOption]; ok && name != "" {
		return name
	}
	if len(networkID) >= bridgeIDLen {
		return bridgePrefix + networkID[:bridgeIDLen]
	}
	if networkID != "" {
		return bridgePrefix + networkID
	}
	return ""
}
