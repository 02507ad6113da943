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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

func TestPolicyCacheSwap(t *testing.T) {
	InitializePolicyCache()
	assert.Nil(t, GetPolicy())

	first := &types.Policy{}
	SetPolicy(first)
	assert.Same(t, first, GetPolicy())

	second := &types.Policy{ContainerToHost: &types.ContainerToHost{DefaultPolicy: types.ActionDrop}}
	SetPolicy(second)
	assert.Same(t, second, GetPolicy())
}
