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
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/cache"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/controller"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/docker"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/iptables"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/kernel"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/node"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/policy"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/utils"
)

/* Our version */
var version = "dev"

/* Exit codes */
const (
	exitOK                = 0
	exitFatal             = 1
	exitPolicyParse       = 2
	exitBackendInit       = 3
	exitDockerUnavailable = 4
	exitSigint            = 130
)

const (
	backendRestore = "iptables-restore"
	backendDirect  = "iptables"
)

var (
	cfgPath        string
	loadInterval   int
	disableIPv6    bool
	dryRun         bool
	backendName    string
	rebuildTimeout int
	logLevel       string
	dockerRetries  int
)

/* Cobra Root Command */
var rootCmd = &cobra.Command{
	Use:     "dfw-ipt-bridge",
	Version: version,
	Short:   "Docker Firewall Bridge Controller",
	Long:    "dfw-ipt-bridge - Docker-aware iptables Firewall Controller.",
	Run: func(_ *cobra.Command, args []string) {
		/* Force log to stderr so --dry-run transcripts stay clean on stdout */
		klog.LogToStderr(true)
		applyLogLevel(logLevel)

		code := run()
		klog.Flush()
		os.Exit(code)

		_ = args
	},
}

func run() int {
	pol, err := policy.Load(cfgPath)
	if err != nil {
		klog.Errorf("Loading policy %s failed: %v \n", cfgPath, err)
		return exitPolicyParse
	}
	cache.InitializePolicyCache()
	cache.SetPolicy(pol)
	klog.V(2).Infof("Policy loaded from %s", cfgPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var v4, v6 iptables.Backend
	var recV4, recV6 *iptables.Recorder
	if dryRun {
		recV4 = iptables.NewRecorder()
		v4 = recV4
		if !disableIPv6 {
			recV6 = iptables.NewRecorder()
			v6 = recV6
		}
	} else {
		if !kernel.CheckIPTables(!disableIPv6) {
			klog.Errorf("Error matching xtables kernel modules...\n")
			return exitBackendInit
		}
		v4, v6, err = buildBackends()
		if err != nil {
			klog.Errorf("Backend initialization failed: %v \n", err)
			return exitBackendInit
		}
	}

	facade, err := docker.Connect(ctx, dockerRetries)
	if err != nil {
		klog.Errorf("Docker connection failed: %v \n", err)
		return exitDockerUnavailable
	}
	defer facade.Close()

	klog.V(8).Infof("creating controllers: controller.NewControllers() \n")
	ctrl, err := controller.NewControllers(controller.Config{
		Facade:         facade,
		V4:             v4,
		V6:             v6,
		PolicyPath:     cfgPath,
		LoadInterval:   time.Duration(loadInterval) * time.Second,
		RebuildTimeout: time.Duration(rebuildTimeout) * time.Second,
	})
	if err != nil {
		klog.Errorf("controller.NewControllers() failed: %v \n", err)
		return exitFatal
	}

	if dryRun {
		if err := ctrl.ReconcileOnce(ctx); err != nil {
			klog.Errorf("Dry-run reconciliation failed: %v \n", err)
			return exitFatal
		}
		fmt.Print(recV4.String())
		if recV6 != nil {
			fmt.Print(recV6.String())
		}
		return exitOK
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	klog.V(8).Infof("starting controllers: controller.Run() \n")
	sig, err := ctrl.Run(ctx, sigCh)
	if err != nil {
		klog.Errorf("ctrl.Run() failed: %v \n", err)
		return exitFatal
	}
	if sig == syscall.SIGINT {
		return exitSigint
	}
	klog.Infof("Shutdown complete.\n")
	return exitOK
}

func buildBackends() (iptables.Backend, iptables.Backend, error) {
	switch backendName {
	case backendRestore:
		var v6 iptables.Backend
		if !disableIPv6 {
			v6 = iptables.NewRestore(iptables.ProtocolIPv6)
		}
		return iptables.NewRestore(iptables.ProtocolIPv4), v6, nil
	case backendDirect:
		v4, err := iptables.NewLive(iptables.ProtocolIPv4)
		if err != nil {
			return nil, nil, err
		}
		var v6 iptables.Backend
		if !disableIPv6 {
			v6, err = iptables.NewLive(iptables.ProtocolIPv6)
			if err != nil {
				return nil, nil, err
			}
		}
		return v4, v6, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q (want %s or %s)", backendName, backendRestore, backendDirect)
}

/* applyLogLevel maps the coarse log level onto klog verbosity */
func applyLogLevel(level string) {
	v := "2"
	switch level {
	case "debug":
		v = "5"
	case "info":
		v = "2"
	case "warn", "error":
		v = "0"
	default:
		klog.Warningf("Unknown log level %q, using info.", level)
	}
	if err := rootCmd.PersistentFlags().Set("v", v); err != nil {
		klog.Warningf("Failed to set klog verbosity: %v", err)
	}
}

//nolint:gochecknoinits
func init() {
	defer klog.Flush()

	/* Create pflag.FlagSet for klog flags */
	klogFlags := pflag.NewFlagSet("klog", pflag.ContinueOnError)

	/* Initialize klog flags using a temporary *flag.FlagSet */
	goFlags := flag.NewFlagSet("go-flags-for-klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)

	/* Add values from *flag.FlagSet to Cobra's *pflag.FlagSet */
	goFlags.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		klogFlags.AddFlag(pf)
	})

	/* Add flags to our rootCmd */
	rootCmd.PersistentFlags().AddFlagSet(klogFlags)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the policy file or fragment directory")
	rootCmd.PersistentFlags().IntVar(&loadInterval, "load-interval", 0, "periodic refresh interval in seconds, 0 for event-driven only")
	rootCmd.PersistentFlags().BoolVar(&disableIPv6, "disable-ipv6", false, "do not manage the IPv6 packet filter")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "record one pass and print the transcript instead of touching the kernel")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", backendRestore, "firewall backend: iptables-restore or iptables")
	rootCmd.PersistentFlags().IntVar(&rebuildTimeout, "rebuild-timeout", 60, "hard cap on one reconciliation pass in seconds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().IntVar(&dockerRetries, "docker-retries", 5, "docker connection retry budget")

	if err := rootCmd.MarkPersistentFlagRequired("config"); err != nil {
		klog.Warningf("Failed to mark --config required: %v", err)
	}
}

/* This is our controller starting point */
func main() {
	utils.DisplayBanner(version)

	host := node.GetNodeHostname()
	if host == "" {
		klog.Errorf("Hostname returned empty string...\n")
		klog.Flush()
		os.Exit(exitFatal)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing root command: %v\n", err)
		klog.Fatalf("Error executing root command: %v \n", err)
	}
}
