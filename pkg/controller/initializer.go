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
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/cache"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

/* This is our main controller */
type Controllers struct {
	reconciler *Reconciler
}

/* Creating an instance of the reconciler and verifying its inputs */
func NewControllers(cfg Config) (*Controllers, error) {
	if cfg.Facade == nil {
		return nil, fmt.Errorf("%w: no docker facade", types.ErrInternalInvariant)
	}
	if cfg.V4 == nil {
		return nil, fmt.Errorf("%w: no IPv4 backend", types.ErrInternalInvariant)
	}
	if cache.GetPolicy() == nil {
		return nil, fmt.Errorf("%w: no policy loaded", types.ErrInternalInvariant)
	}

	klog.V(8).Infof("creating Reconciler... \n")
	return &Controllers{reconciler: NewReconciler(cfg)}, nil
}

/* Run blocks until shutdown and reports the terminating signal */
func (c *Controllers) Run(ctx context.Context, sigCh <-chan os.Signal) (os.Signal, error) {
	klog.Infof("Starting reconciler... \n")
	return c.reconciler.Run(ctx, sigCh)
}

/* ReconcileOnce performs a single pass, used by --dry-run */
func (c *Controllers) ReconcileOnce(ctx context.Context) error {
	return c.reconciler.rebuild(ctx, "dry-run")
}
