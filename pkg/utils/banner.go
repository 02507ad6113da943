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

import (
	"k8s.io/klog/v2"
)

/* Display a banner because we are cool */
func DisplayBanner(version string) {
	klog.Infof("\n")
	klog.Infof("      _  __                _       _           _     _      _            \n")
	klog.Infof("   __| |/ _|_      __     (_)_ __ | |_        | |__ (_) ___| | __ _  ___ \n")
	klog.Infof("  / _` | |_\\ \\ /\\ / /_____| | '_ \\| __|_______| '_ \\| |/ _ \\ |/ _` |/ _ \\\n")
	klog.Infof(" | (_| |  _|\\ V  V /______| | |_) | ||_______/| |_) | |  __/ | (_| |  __/\n")
	klog.Infof("  \\__,_|_|   \\_/\\_/       |_| .__/ \\__|       |_.__/|_|\\___|_|\\__, |\\___|\n")
	klog.Infof("                            |_|                               |___/      \n")
	klog.Infof("\n")
	klog.Infof("                                     Version: %s", version)
	klog.Infof("\n")
}
