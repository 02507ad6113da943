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
package kernel

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

/* xtables kernel modules per family */
var v4Modules = []string{"ip_tables", "iptable_filter", "iptable_nat"}
var v6Modules = []string{"ip6_tables", "ip6table_filter", "ip6table_nat"}

/* procfs files present when the corresponding support is built in */
const (
	v4TablesNames = "/proc/net/ip_tables_names"
	v6TablesNames = "/proc/net/ip6_tables_names"
)

/* check if iptables support is available for the requested families */
func CheckIPTables(ipv6 bool) bool {
	if !familyAvailable(v4Modules, v4TablesNames) {
		klog.Errorf("No IPv4 iptables support found on this kernel. \n")
		klog.Errorf("Make sure these modules are loaded: %v \n", v4Modules)
		return false
	}
	if ipv6 && !familyAvailable(v6Modules, v6TablesNames) {
		klog.Errorf("No IPv6 iptables support found on this kernel. \n")
		klog.Errorf("Make sure these modules are loaded: %v \n", v6Modules)
		return false
	}
	klog.V(8).Infof("Finished matching xtables support... \n")
	return true
}

func familyAvailable(modules []string, tablesNames string) bool {
	/* Built-in support exposes the tables-names file even with no
	 * modules listed in /proc/modules.
	 */
	if err := unix.Access(tablesNames, unix.R_OK); err == nil {
		klog.V(8).Infof("Found %s, xtables support is built in... \n", tablesNames)
		return true
	}

	klog.V(8).Infof("Opening /proc/modules... \n")
	loaded, err := os.ReadFile("/proc/modules")
	if err != nil {
		klog.Errorf("Error checking /proc/modules: %v \n", err)
		return false
	}

	for _, module := range modules {
		klog.V(8).Infof("Matching module %s on /proc/modules... \n", module)
		if !strings.Contains(string(loaded), module+" ") {
			klog.Errorf("No %s module found on kernel. \n", module)
			return false
		}
	}
	return true
}
