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
package node

import (
	"os"

	"k8s.io/klog/v2"
)

/* GetNodeHostname returns this host's name for startup logging */
func GetNodeHostname() string {
	host, err := os.Hostname()
	if err != nil {
		klog.Errorf("Error getting hostname: %v \n", err)
		return ""
	}
	klog.V(8).Infof("Running on host %s... \n", host)
	return host
}
