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
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"

	"k8s.io/klog/v2"
)

const uint32Size = 4

/* Generate Random UINT32 */
func GenerateRandUInt32() uint32 {
	buf := make([]byte, uint32Size)
	_, err := rand.Read(buf)
	if err != nil {
		klog.Errorf("Failed to generate random bytes for uint32: %v", err)
		return 0
	}
	return binary.LittleEndian.Uint32(buf)
}

/* Creates a random short ID for logging */
func GenerateRandomShortID() string {
	/* Generates a random number between 0 and 999999 */
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		klog.Warningf("Failed to generate random int for short ID, using fallback: %v", err)
		/* Fallback to a less random ID on error */
		return fmt.Sprintf("%06x", GenerateRandUInt32()%0xffffff)
	}
	return fmt.Sprintf("%06d", n) /* Format with leading zeros to have 6 digits */
}
