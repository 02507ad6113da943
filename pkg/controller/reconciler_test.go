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
package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/cache"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/docker"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/iptables"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

/* fakeFacade serves canned snapshots and an inert event stream */
type fakeFacade struct {
	containers []docker.ContainerSnapshot
	networks   []docker.NetworkSnapshot
}

func (f *fakeFacade) Containers(_ context.Context) ([]docker.ContainerSnapshot, error) {
	return f.containers, nil
}

func (f *fakeFacade) Networks(_ context.Context) ([]docker.NetworkSnapshot, error) {
	return f.networks, nil
}

func (f *fakeFacade) Events(_ context.Context) (<-chan events.Message, <-chan error) {
	return make(chan events.Message), make(chan error)
}

func (f *fakeFacade) Close() error { return nil }

func newTestReconciler(t *testing.T, v4, v6 iptables.Backend) *Reconciler {
	t.Helper()
	containers, networks := defaultBridgeFixture()
	return NewReconciler(Config{
		Facade:         &fakeFacade{containers: containers, networks: networks},
		V4:             v4,
		V6:             v6,
		PolicyPath:     filepath.Join(t.TempDir(), "absent.toml"),
		RebuildTimeout: 10 * time.Second,
	})
}

func TestRebuildCommitsBothFamilies(t *testing.T) {
	cache.InitializePolicyCache()
	cache.SetPolicy(&types.Policy{})

	recV4 := iptables.NewRecorder()
	recV6 := iptables.NewRecorder()
	r := newTestReconciler(t, recV4, recV6)

	require.NoError(t, r.rebuild(context.Background(), "test"))

	v4 := recV4.Transcript()
	v6 := recV6.Transcript()
	require.NotEmpty(t, v4)
	require.NotEmpty(t, v6)
	assert.Equal(t, "commit", v4[len(v4)-1])
	assert.Equal(t, "commit", v6[len(v6)-1])
}

func TestRebuildSkipsIPv6WhenDisabled(t *testing.T) {
	cache.InitializePolicyCache()
	cache.SetPolicy(&types.Policy{})

	recV4 := iptables.NewRecorder()
	r := newTestReconciler(t, recV4, nil)

	require.NoError(t, r.rebuild(context.Background(), "test"))
	assert.NotEmpty(t, recV4.Transcript())
}

func TestRebuildTimesOut(t *testing.T) {
	cache.InitializePolicyCache()
	cache.SetPolicy(&types.Policy{})

	rec := iptables.NewRecorder()
	r := newTestReconciler(t, rec, nil)
	r.cfg.RebuildTimeout = time.Nanosecond

	/* The deadline expires before the first backend operation. */
	time.Sleep(time.Millisecond)
	err := r.rebuild(context.Background(), "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRebuildTimeout)
	assert.NotContains(t, rec.Transcript(), "commit")
}

/* S6: a malformed policy on reload keeps the previous one active and
 * performs no backend operations.
 */
func TestMalformedReloadKeepsPreviousPolicy(t *testing.T) {
	previous := &types.Policy{
		ContainerToHost: &types.ContainerToHost{DefaultPolicy: types.ActionAccept},
	}
	cache.InitializePolicyCache()
	cache.SetPolicy(previous)

	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[container_to_host]\ndefault_policy = \"bogus\"\n"), 0o644))

	rec := iptables.NewRecorder()
	r := newTestReconciler(t, rec, nil)
	r.cfg.PolicyPath = path

	r.reloadPolicy()

	assert.Same(t, previous, cache.GetPolicy())
	assert.Empty(t, rec.Transcript())
}

func TestValidReloadSwapsPolicy(t *testing.T) {
	cache.InitializePolicyCache()
	cache.SetPolicy(&types.Policy{})

	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[container_to_host]\ndefault_policy = \"drop\"\n"), 0o644))

	r := newTestReconciler(t, iptables.NewRecorder(), nil)
	r.cfg.PolicyPath = path

	r.reloadPolicy()

	pol := cache.GetPolicy()
	require.NotNil(t, pol)
	require.NotNil(t, pol.ContainerToHost)
	assert.Equal(t, types.ActionDrop, pol.ContainerToHost.DefaultPolicy)
}

func TestForceReconcileCoalesces(t *testing.T) {
	cache.InitializePolicyCache()
	cache.SetPolicy(&types.Policy{})

	r := newTestReconciler(t, iptables.NewRecorder(), nil)

	/* A burst of triggers collapses into a single dirty bit. */
	for i := 0; i < 10; i++ {
		r.ForceReconcile()
	}

	select {
	case <-r.trigger:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger after the debounce window")
	}

	select {
	case <-r.trigger:
		t.Fatal("burst must coalesce into one pending trigger")
	case <-time.After(2 * debounceDuration):
	}
}
