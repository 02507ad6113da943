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
package docker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

const (
	connectBackoffStart = 500 * time.Millisecond
	connectBackoffCeil  = 30 * time.Second
)

/* Facade is the read-only view over the Docker daemon */
type Facade interface {
	Containers(ctx context.Context) ([]ContainerSnapshot, error)
	Networks(ctx context.Context) ([]NetworkSnapshot, error)
	Events(ctx context.Context) (<-chan events.Message, <-chan error)
	Close() error
}

/* Client talks to a real Docker daemon */
type Client struct {
	api *client.Client
}

/* Connect dials the daemon, pinging with exponential backoff until
 * the retry budget is exhausted.
 */
func Connect(ctx context.Context, retries int) (*Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: creating client: %v", types.ErrDockerUnavailable, err)
	}

	backoff := connectBackoffStart
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			klog.Warningf("Docker ping failed (attempt %d/%d), retrying in %v: %v", attempt, retries, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", types.ErrDockerUnavailable, ctx.Err())
			}
			backoff *= 2
			if backoff > connectBackoffCeil {
				backoff = connectBackoffCeil
			}
		}
		if _, lastErr = api.Ping(ctx); lastErr == nil {
			klog.V(2).Infof("Connected to Docker daemon")
			return &Client{api: api}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", types.ErrDockerUnavailable, lastErr)
}

/* Containers lists the running containers, sorted by ID so every
 * snapshot of the same daemon state is identical.
 */
func (c *Client) Containers(ctx context.Context) ([]ContainerSnapshot, error) {
	list, err := c.api.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing containers: %v", types.ErrDockerUnavailable, err)
	}
	snaps := make([]ContainerSnapshot, 0, len(list))
	for _, item := range list {
		snaps = append(snaps, containerFromSummary(item))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	klog.V(5).Infof("Snapshot: %d running containers", len(snaps))
	return snaps, nil
}

/* Networks lists the bridge networks */
func (c *Client) Networks(ctx context.Context) ([]NetworkSnapshot, error) {
	list, err := c.api.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing networks: %v", types.ErrDockerUnavailable, err)
	}
	snaps := make([]NetworkSnapshot, 0, len(list))
	for _, item := range list {
		if snap, ok := networkFromInspect(item); ok {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	klog.V(5).Infof("Snapshot: %d bridge networks", len(snaps))
	return snaps, nil
}

/* Events subscribes to the daemon's event stream, server-side filtered
 * to the lifecycle events that can change the synthesized ruleset.
 */
func (c *Client) Events(ctx context.Context) (<-chan events.Message, <-chan error) {
	f := filters.NewArgs()
	f.Add("type", string(events.ContainerEventType))
	f.Add("type", string(events.NetworkEventType))
	f.Add("event", "start")
	f.Add("event", "die")
	f.Add("event", "destroy")
	f.Add("event", "connect")
	f.Add("event", "disconnect")
	return c.api.Events(ctx, events.ListOptions{Filters: f})
}

func (c *Client) Close() error {
	return c.api.Close()
}
