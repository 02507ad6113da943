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
package cache

import (
	"sync"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
	"k8s.io/klog/v2"
)

/* Holds the current policy document. A reload swaps the pointer
 * wholesale; the reconciliation worker reads it once per pass.
 */
type PolicyCache struct {
	sync.RWMutex
	current *types.Policy
}

var policyCache PolicyCache

/* Initialize the cache */
func InitializePolicyCache() {
	klog.V(8).Infof("Initializing policyCache...")
	policyCache = PolicyCache{}
}

/* SetPolicy replaces the current policy */
func SetPolicy(p *types.Policy) {
	policyCache.Lock()
	defer policyCache.Unlock()
	policyCache.current = p
	klog.V(2).Infof("Policy cache updated")
}

/* GetPolicy returns the current policy, nil if none was loaded */
func GetPolicy() *types.Policy {
	policyCache.RLock()
	defer policyCache.RUnlock()
	return policyCache.current
}
