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
package policy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

/* Load reads a policy from a TOML file, or from a directory of
 * fragments merged in lexical order. Unknown fields and out-of-domain
 * values fail with the parse error kind; missing container or network
 * references never fail here.
 */
func Load(path string) (*types.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPolicyParse, err)
	}

	var data []byte
	if info.IsDir() {
		data, err = readFragments(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPolicyParse, err)
	}

	return Parse(data)
}

/* Parse decodes and structurally validates a policy document */
func Parse(data []byte) (*types.Policy, error) {
	var pol types.Policy
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pol); err != nil {
		var details *toml.StrictMissingError
		if ok := asStrictMissing(err, &details); ok {
			return nil, fmt.Errorf("%w: unknown fields: %s", types.ErrPolicyParse, details.String())
		}
		return nil, fmt.Errorf("%w: %v", types.ErrPolicyParse, err)
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	return &pol, nil
}

func asStrictMissing(err error, target **toml.StrictMissingError) bool {
	sm, ok := err.(*toml.StrictMissingError)
	if !ok {
		return false
	}
	*target = sm
	return true
}

func readFragments(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no .toml fragments in %s", dir)
	}

	var merged bytes.Buffer
	for _, name := range names {
		klog.V(5).Infof("Reading policy fragment %s", name)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged.Write(data)
		merged.WriteString("\n")
	}
	return merged.Bytes(), nil
}
