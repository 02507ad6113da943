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

import "errors"

/* Tagged error kinds. Wrap with fmt.Errorf("%w: ...") and classify with errors.Is. */
var (
	/* ErrPolicyParse marks a structurally invalid policy document. */
	ErrPolicyParse = errors.New("policy parse error")

	/* ErrDockerUnavailable marks a transient Docker daemon failure, retried with backoff. */
	ErrDockerUnavailable = errors.New("docker unavailable")

	/* ErrBackend marks a single failed backend operation; it aborts the current pass. */
	ErrBackend = errors.New("backend error")

	/* ErrRebuildTimeout marks a reconciliation pass that exceeded its hard deadline. */
	ErrRebuildTimeout = errors.New("rebuild timed out")

	/* ErrInternalInvariant is fatal and propagates to the supervisor. */
	ErrInternalInvariant = errors.New("internal invariant violation")
)
