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
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/cache"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/docker"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/handler"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/iptables"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/policy"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/utils"
)

const (
	triggerQueueSize     = 1
	debounceDuration     = 250 * time.Millisecond
	eventResubscribeBase = 1 * time.Second
	eventResubscribeCeil = 30 * time.Second
)

/* Config wires the reconciler's collaborators */
type Config struct {
	Facade         docker.Facade
	V4             iptables.Backend
	V6             iptables.Backend /* nil when IPv6 is disabled */
	PolicyPath     string
	LoadInterval   time.Duration /* 0 disables the periodic refresh */
	RebuildTimeout time.Duration
}

/* Reconciler owns the backends for the process lifetime and performs
 * every firewall mutation on its own worker. Event producers only
 * poke the dirty bit; bursts collapse into at most one extra pass.
 */
type Reconciler struct {
	cfg Config

	trigger chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

func NewReconciler(cfg Config) *Reconciler {
	if cfg.RebuildTimeout <= 0 {
		cfg.RebuildTimeout = 60 * time.Second
	}
	return &Reconciler{
		cfg:     cfg,
		trigger: make(chan struct{}, triggerQueueSize),
	}
}

/* ForceReconcile marks the state dirty. A short debounce coalesces
 * event bursts before the capacity-1 trigger channel does the rest.
 */
func (r *Reconciler) ForceReconcile() {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()

	if r.debounce != nil {
		if !r.debounce.Stop() {
			klog.V(6).Info("ForceReconcile: timer had already fired or was stopped.")
		}
	}

	klog.V(4).Infof("ForceReconcile: (re)starting debounce timer for %v.", debounceDuration)
	r.debounce = time.AfterFunc(debounceDuration, func() {
		select {
		case r.trigger <- struct{}{}:
			klog.V(5).Info("Debounce timer: signal sent to trigger channel.")
		default:
			klog.V(5).Info("Debounce timer: trigger channel already dirty.")
		}
	})
}

/* Run is the reconciliation worker. It blocks until a termination
 * signal or context cancellation and returns the signal that caused
 * the shutdown, if any. An in-flight pass is always drained.
 */
func (r *Reconciler) Run(ctx context.Context, sigCh <-chan os.Signal) (os.Signal, error) {
	watcher := policy.NewWatcher(r.cfg.PolicyPath, func() {
		r.reloadPolicy()
		r.ForceReconcile()
	})
	watcher.Start()
	defer watcher.Stop()

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	go r.pumpEvents(pumpCtx)

	var tickerC <-chan time.Time
	if r.cfg.LoadInterval > 0 {
		ticker := time.NewTicker(r.cfg.LoadInterval)
		defer ticker.Stop()
		tickerC = ticker.C
	}

	/* Initial pass before any trigger arrives. */
	if err := r.runPass(ctx, "startup"); err != nil {
		return nil, err
	}

	for {
		/* Signals take priority over pending triggers. */
		select {
		case sig := <-sigCh:
			done, err := r.handleSignal(ctx, sig)
			if done || err != nil {
				return sig, err
			}
			continue
		default:
		}

		select {
		case sig := <-sigCh:
			done, err := r.handleSignal(ctx, sig)
			if done || err != nil {
				return sig, err
			}
		case <-r.trigger:
			klog.V(5).Info("Debounced reconciliation triggered via channel.")
			if err := r.runPass(ctx, "trigger"); err != nil {
				return nil, err
			}
		case <-tickerC:
			klog.V(5).Info("Periodic reconciliation triggered by ticker.")
			if err := r.runPass(ctx, "periodic"); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			klog.V(2).Info("Context cancelled, reconciler exiting.")
			return nil, nil
		}
	}
}

/* handleSignal returns done=true on termination signals */
func (r *Reconciler) handleSignal(ctx context.Context, sig os.Signal) (bool, error) {
	switch sig {
	case syscall.SIGHUP:
		klog.Infof("SIGHUP received, reloading policy.")
		previous := cache.GetPolicy()
		r.reloadPolicy()
		if cache.GetPolicy() == previous {
			/* Reload failed: the previous policy stands, no pass runs. */
			return false, nil
		}
		return false, r.runPass(ctx, "sighup")
	case syscall.SIGINT, syscall.SIGTERM:
		klog.Infof("Termination signal received (%v), shutting down.", sig)
		return true, nil
	}
	klog.V(4).Infof("Ignoring signal %v.", sig)
	return false, nil
}

/* reloadPolicy swaps in a fresh policy. A malformed document keeps
 * the previous policy active and performs no backend operations.
 */
func (r *Reconciler) reloadPolicy() {
	pol, err := policy.Load(r.cfg.PolicyPath)
	if err != nil {
		klog.Warningf("Policy reload failed, keeping previous policy: %v", err)
		return
	}
	cache.SetPolicy(pol)
	klog.V(2).Infof("Policy reloaded from %s", r.cfg.PolicyPath)
}

/* runPass performs one full reconciliation. Recoverable errors abort
 * the pass and leave the last committed state standing; only an
 * internal invariant violation propagates to the supervisor.
 */
func (r *Reconciler) runPass(ctx context.Context, reason string) error {
	cycleID := utils.GenerateRandomShortID()
	klog.V(4).Infof("[CycleID: %s] Reconciliation pass started (%s).", cycleID, reason)

	err := r.rebuild(ctx, cycleID)
	switch {
	case err == nil:
		klog.V(4).Infof("[CycleID: %s] Reconciliation pass finished.", cycleID)
	case errors.Is(err, types.ErrInternalInvariant):
		klog.Errorf("[CycleID: %s] Invariant violation, shutting down: %v", cycleID, err)
		return err
	default:
		klog.Warningf("[CycleID: %s] Pass aborted, previous committed state stands: %v", cycleID, err)
	}
	return nil
}

func (r *Reconciler) rebuild(ctx context.Context, cycleID string) error {
	pol := cache.GetPolicy()
	if pol == nil {
		return types.ErrInternalInvariant
	}

	passCtx, cancel := context.WithTimeout(ctx, r.cfg.RebuildTimeout)
	defer cancel()

	containers, err := r.cfg.Facade.Containers(passCtx)
	if err != nil {
		return err
	}
	networks, err := r.cfg.Facade.Networks(passCtx)
	if err != nil {
		return err
	}
	klog.V(5).Infof("[CycleID: %s] Snapshot: %d containers, %d networks.", cycleID, len(containers), len(networks))

	if err := ApplyRuleset(withDeadline(passCtx, r.cfg.V4), pol, containers, networks, iptables.ProtocolIPv4); err != nil {
		return err
	}
	klog.V(3).Infof("[CycleID: %s] IPv4 ruleset committed.", cycleID)

	if r.cfg.V6 != nil {
		if err := ApplyRuleset(withDeadline(passCtx, r.cfg.V6), pol, containers, networks, iptables.ProtocolIPv6); err != nil {
			return err
		}
		klog.V(3).Infof("[CycleID: %s] IPv6 ruleset committed.", cycleID)
	}
	return nil
}

/* pumpEvents subscribes to the Docker event stream and resubscribes
 * with backoff when the stream breaks. A resubscribe always forces a
 * pass to cover events lost in the gap.
 */
func (r *Reconciler) pumpEvents(ctx context.Context) {
	backoff := eventResubscribeBase
	for {
		msgCh, errCh := r.cfg.Facade.Events(ctx)
		klog.V(2).Info("Subscribed to Docker event stream.")

	stream:
		for {
			select {
			case ev, ok := <-msgCh:
				if !ok {
					break stream
				}
				if handler.RelevantEvent(ev) {
					r.ForceReconcile()
				}
			case err, ok := <-errCh:
				if ctx.Err() != nil {
					return
				}
				if ok && err != nil {
					klog.Warningf("Docker event stream broke: %v", err)
				}
				break stream
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > eventResubscribeCeil {
			backoff = eventResubscribeCeil
		}
		r.ForceReconcile()
	}
}

/* deadlineBackend aborts backend operations once the pass deadline
 * expires, surfacing the rebuild timeout kind. The prior committed
 * kernel state is untouched because nothing was committed yet.
 */
type deadlineBackend struct {
	iptables.Backend
	ctx context.Context
}

func withDeadline(ctx context.Context, b iptables.Backend) iptables.Backend {
	return &deadlineBackend{Backend: b, ctx: ctx}
}

func (d *deadlineBackend) check() error {
	if err := d.ctx.Err(); err != nil {
		return types.ErrRebuildTimeout
	}
	return nil
}

func (d *deadlineBackend) EnsureTable(table string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.EnsureTable(table)
}

func (d *deadlineBackend) NewChain(table, chain string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.NewChain(table, chain)
}

func (d *deadlineBackend) FlushChain(table, chain string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.FlushChain(table, chain)
}

func (d *deadlineBackend) SetPolicy(table, chain, target string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.SetPolicy(table, chain, target)
}

func (d *deadlineBackend) Append(table, chain, rule string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.Append(table, chain, rule)
}

func (d *deadlineBackend) AppendReplace(table, chain, rule string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.AppendReplace(table, chain, rule)
}

func (d *deadlineBackend) Execute(table, raw string) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.Backend.Execute(table, raw)
}

func (d *deadlineBackend) Commit() error {
	if err := d.check(); err != nil {
		return err
	}
	if cc, ok := d.Backend.(interface {
		CommitContext(context.Context) error
	}); ok {
		return cc.CommitContext(d.ctx)
	}
	return d.Backend.Commit()
}
