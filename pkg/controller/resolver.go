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
	"fmt"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/dfwrs/dfw-ipt-bridge/pkg/docker"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/iptables"
	"github.com/dfwrs/dfw-ipt-bridge/pkg/types"
)

/* managedChains in creation order: filter chains first, then nat */
var managedChains = []struct {
	table string
	chain string
}{
	{types.TableFilter, types.InputChain},
	{types.TableFilter, types.ForwardChain},
	{types.TableNat, types.PreroutingChain},
	{types.TableNat, types.PostroutingChain},
}

/* resolution is the pass-local working set: policy references resolved
 * against one immutable snapshot pair. Nothing survives the pass.
 */
type resolution struct {
	fam      iptables.Protocol
	networks map[string]docker.NetworkSnapshot
	byName   map[string]docker.ContainerSnapshot
}

func newResolution(containers []docker.ContainerSnapshot, networks []docker.NetworkSnapshot, fam iptables.Protocol) *resolution {
	res := &resolution{
		fam:      fam,
		networks: make(map[string]docker.NetworkSnapshot, len(networks)),
		byName:   make(map[string]docker.ContainerSnapshot, len(containers)),
	}
	for _, n := range networks {
		res.networks[n.Name] = n
	}

	sorted := make([]docker.ContainerSnapshot, len(containers))
	copy(sorted, containers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, c := range sorted {
		if existing, dup := res.byName[c.Name]; dup {
			/* Docker enforces name uniqueness; a stale snapshot can
			 * still carry duplicates. First by ID wins.
			 */
			klog.Warningf("Duplicate container name %q in snapshot (%s, %s); using %s", c.Name, existing.ID, c.ID, existing.ID)
			continue
		}
		res.byName[c.Name] = c
	}

	/* Track which networks have at least one attached container with
	 * an address of this family; only their bridges take part in
	 * section defaults.
	 */
	res.pruneUnattached(sorted)
	return res
}

func (r *resolution) pruneUnattached(containers []docker.ContainerSnapshot) {
	attached := make(map[string]bool)
	for _, c := range containers {
		for _, att := range c.Networks {
			if r.familyIP(att) != "" {
				attached[att.NetworkName] = true
			}
		}
	}
	for name := range r.networks {
		if !attached[name] {
			delete(r.networks, name)
		}
	}
}

func (r *resolution) familyIP(att docker.NetworkAttachment) string {
	if r.fam == iptables.ProtocolIPv6 {
		return att.IPv6
	}
	return att.IPv4
}

/* network resolves a policy network reference to a snapshot with a
 * known bridge interface. Misses are skips, never errors.
 */
func (r *resolution) network(name string) (docker.NetworkSnapshot, bool) {
	n, ok := r.networks[name]
	if !ok || n.BridgeInterface == "" {
		return docker.NetworkSnapshot{}, false
	}
	return n, true
}

/* endpointIP resolves a container reference to its address on the
 * given network for the pass family.
 */
func (r *resolution) endpointIP(containerName, networkName string) (string, bool) {
	c, ok := r.byName[containerName]
	if !ok {
		return "", false
	}
	att, ok := c.Attachment(networkName)
	if !ok {
		return "", false
	}
	ip := r.familyIP(att)
	return ip, ip != ""
}

/* subnets returns the family subnets of a network */
func (r *resolution) subnets(n docker.NetworkSnapshot) []string {
	if r.fam == iptables.ProtocolIPv6 {
		return n.SubnetsV6
	}
	return n.SubnetsV4
}

/* bridges returns all known bridge interfaces, sorted */
func (r *resolution) bridges() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range r.networks {
		if n.BridgeInterface != "" && !seen[n.BridgeInterface] {
			seen[n.BridgeInterface] = true
			out = append(out, n.BridgeInterface)
		}
	}
	sort.Strings(out)
	return out
}

/* ApplyRuleset synthesizes the complete ruleset for one family onto a
 * backend, ending with Commit. The operation order is fixed; the
 * transcript is a pure function of (policy, sorted snapshot, family).
 */
func ApplyRuleset(b iptables.Backend, pol *types.Policy, containers []docker.ContainerSnapshot, networks []docker.NetworkSnapshot, fam iptables.Protocol) error {
	res := newResolution(containers, networks, fam)

	if err := initializeChains(b, pol); err != nil {
		return err
	}
	if err := applyDefaultPolicies(b, pol); err != nil {
		return err
	}
	if err := applyBaseline(b); err != nil {
		return err
	}
	if err := applyInitialization(b, pol, fam); err != nil {
		return err
	}
	if err := applyContainerToContainer(b, pol.ContainerToContainer, res); err != nil {
		return err
	}
	if err := applyContainerToWiderWorld(b, pol.ContainerToWiderWorld, res); err != nil {
		return err
	}
	if err := applyContainerToHost(b, pol.ContainerToHost, res); err != nil {
		return err
	}
	if err := applyWiderWorldToContainer(b, pol.WiderWorldToContainer, res); err != nil {
		return err
	}
	if err := applyContainerDNAT(b, pol.ContainerDNAT, res); err != nil {
		return err
	}
	return b.Commit()
}

func initializeChains(b iptables.Backend, pol *types.Policy) error {
	if pol.Defaults != nil {
		for _, table := range pol.Defaults.CustomTables {
			if err := b.EnsureTable(table); err != nil {
				return err
			}
		}
	}
	for _, mc := range managedChains {
		if err := b.NewChain(mc.table, mc.chain); err != nil {
			return err
		}
		if err := b.FlushChain(mc.table, mc.chain); err != nil {
			return err
		}
	}
	return nil
}

func applyDefaultPolicies(b iptables.Backend, pol *types.Policy) error {
	if pol.Defaults == nil {
		return nil
	}
	for _, dp := range []struct {
		chain  string
		action types.Action
	}{
		{types.BuiltinInput, pol.Defaults.DefaultInputPolicy},
		{types.BuiltinForward, pol.Defaults.DefaultForwardPolicy},
		{types.BuiltinOutput, pol.Defaults.DefaultOutputPolicy},
	} {
		if dp.action == "" {
			continue
		}
		if err := b.SetPolicy(types.TableFilter, dp.chain, dp.action.Target()); err != nil {
			return err
		}
	}
	return nil
}

func applyBaseline(b iptables.Backend) error {
	for _, pair := range []struct {
		managed string
		builtin string
	}{
		{types.InputChain, types.BuiltinInput},
		{types.ForwardChain, types.BuiltinForward},
	} {
		if err := b.Append(types.TableFilter, pair.managed, "-m state --state INVALID -j DROP"); err != nil {
			return err
		}
		if err := b.Append(types.TableFilter, pair.managed, "-m state --state RELATED,ESTABLISHED -j ACCEPT"); err != nil {
			return err
		}
		if err := b.AppendReplace(types.TableFilter, pair.builtin, "-j "+pair.managed); err != nil {
			return err
		}
	}
	if err := b.AppendReplace(types.TableNat, types.BuiltinPrerouting, "-j "+types.PreroutingChain); err != nil {
		return err
	}
	return b.AppendReplace(types.TableNat, types.BuiltinPostrouting, "-j "+types.PostroutingChain)
}

func applyInitialization(b iptables.Backend, pol *types.Policy, fam iptables.Protocol) error {
	if pol.Defaults == nil || pol.Defaults.Initialization == nil {
		return nil
	}
	lines := pol.Defaults.Initialization.V4
	if fam == iptables.ProtocolIPv6 {
		lines = pol.Defaults.Initialization.V6
	}
	for _, line := range lines {
		if err := b.Execute(types.TableFilter, line); err != nil {
			return err
		}
	}
	return nil
}

func applyContainerToContainer(b iptables.Backend, section *types.ContainerToContainer, res *resolution) error {
	if section == nil {
		return nil
	}
	for i, rule := range section.Rules {
		n, ok := res.network(rule.Network)
		if !ok {
			klog.V(4).Infof("container_to_container rule %d: network %q not attached (%s), skipping", i, rule.Network, res.fam)
			continue
		}
		spec := fmt.Sprintf("-i %s -o %s", n.BridgeInterface, n.BridgeInterface)
		if rule.SrcContainer != "" {
			ip, ok := res.endpointIP(rule.SrcContainer, rule.Network)
			if !ok {
				klog.V(4).Infof("container_to_container rule %d: src %q not on %q (%s), skipping", i, rule.SrcContainer, rule.Network, res.fam)
				continue
			}
			spec += " -s " + ip
		}
		if rule.DstContainer != "" {
			ip, ok := res.endpointIP(rule.DstContainer, rule.Network)
			if !ok {
				klog.V(4).Infof("container_to_container rule %d: dst %q not on %q (%s), skipping", i, rule.DstContainer, rule.Network, res.fam)
				continue
			}
			spec += " -d " + ip
		}
		spec = withFilter(spec, rule.Filter) + " -j " + rule.Action.Target()
		if err := b.Append(types.TableFilter, types.ForwardChain, spec); err != nil {
			return err
		}
	}

	if section.DefaultPolicy != "" {
		for _, bridge := range res.bridges() {
			spec := fmt.Sprintf("-i %s -o %s -j %s", bridge, bridge, section.DefaultPolicy.Target())
			if err := b.Append(types.TableFilter, types.ForwardChain, spec); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyContainerToWiderWorld(b iptables.Backend, section *types.ContainerToWiderWorld, res *resolution) error {
	if section == nil {
		return nil
	}
	for i, rule := range section.Rules {
		ext := rule.ExternalNetworkInterface
		if ext == "" {
			ext = section.ExternalNetworkInterface
		}

		/* Without a network restriction the rule spans every known
		 * bridge, mirroring what the section default does.
		 */
		bridges := res.bridges()
		var network docker.NetworkSnapshot
		if rule.Network != "" {
			n, ok := res.network(rule.Network)
			if !ok {
				klog.V(4).Infof("container_to_wider_world rule %d: network %q not attached (%s), skipping", i, rule.Network, res.fam)
				continue
			}
			network = n
			bridges = []string{n.BridgeInterface}
		}

		var srcIP string
		if rule.SrcContainer != "" {
			if rule.Network == "" {
				klog.V(4).Infof("container_to_wider_world rule %d: src_container without network, skipping", i)
				continue
			}
			ip, ok := res.endpointIP(rule.SrcContainer, rule.Network)
			if !ok {
				klog.V(4).Infof("container_to_wider_world rule %d: src %q not on %q (%s), skipping", i, rule.SrcContainer, rule.Network, res.fam)
				continue
			}
			srcIP = ip
		}

		for _, bridge := range bridges {
			spec := "-i " + bridge
			if ext != "" {
				spec += " -o " + ext
			} else {
				spec += " ! -o " + bridge
			}
			if srcIP != "" {
				spec += " -s " + srcIP
			}
			spec = withFilter(spec, rule.Filter) + " -j " + rule.Action.Target()
			if err := b.Append(types.TableFilter, types.ForwardChain, spec); err != nil {
				return err
			}
		}

		if rule.Action == types.ActionAccept && ext != "" {
			if err := emitMasquerade(b, res, network, srcIP, ext); err != nil {
				return err
			}
		}
	}

	if section.DefaultPolicy != "" {
		for _, bridge := range res.bridges() {
			spec := "-i " + bridge
			if section.ExternalNetworkInterface != "" {
				spec += " -o " + section.ExternalNetworkInterface
			} else {
				spec += " ! -o " + bridge
			}
			spec += " -j " + section.DefaultPolicy.Target()
			if err := b.Append(types.TableFilter, types.ForwardChain, spec); err != nil {
				return err
			}
		}
		if section.DefaultPolicy == types.ActionAccept && section.ExternalNetworkInterface != "" {
			spec := "-o " + section.ExternalNetworkInterface + " -j MASQUERADE"
			if err := b.Append(types.TableNat, types.PostroutingChain, spec); err != nil {
				return err
			}
		}
	}
	return nil
}

/* emitMasquerade rewrites egress sources: the endpoint IP when the
 * rule restricts a container, the network's subnets when it only
 * restricts a network, and everything on the interface otherwise.
 */
func emitMasquerade(b iptables.Backend, res *resolution, network docker.NetworkSnapshot, srcIP, ext string) error {
	switch {
	case srcIP != "":
		return b.Append(types.TableNat, types.PostroutingChain, fmt.Sprintf("-s %s -o %s -j MASQUERADE", srcIP, ext))
	case network.Name != "":
		for _, subnet := range res.subnets(network) {
			if err := b.Append(types.TableNat, types.PostroutingChain, fmt.Sprintf("-s %s -o %s -j MASQUERADE", subnet, ext)); err != nil {
				return err
			}
		}
		return nil
	default:
		return b.Append(types.TableNat, types.PostroutingChain, fmt.Sprintf("-o %s -j MASQUERADE", ext))
	}
}

func applyContainerToHost(b iptables.Backend, section *types.ContainerToHost, res *resolution) error {
	if section == nil {
		return nil
	}
	for i, rule := range section.Rules {
		n, ok := res.network(rule.Network)
		if !ok {
			klog.V(4).Infof("container_to_host rule %d: network %q not attached (%s), skipping", i, rule.Network, res.fam)
			continue
		}
		spec := "-i " + n.BridgeInterface
		if rule.SrcContainer != "" {
			ip, ok := res.endpointIP(rule.SrcContainer, rule.Network)
			if !ok {
				klog.V(4).Infof("container_to_host rule %d: src %q not on %q (%s), skipping", i, rule.SrcContainer, rule.Network, res.fam)
				continue
			}
			spec += " -s " + ip
		}
		spec = withFilter(spec, rule.Filter) + " -j " + rule.Action.Target()
		if err := b.Append(types.TableFilter, types.InputChain, spec); err != nil {
			return err
		}
	}

	if section.DefaultPolicy != "" {
		for _, bridge := range res.bridges() {
			spec := fmt.Sprintf("-i %s -j %s", bridge, section.DefaultPolicy.Target())
			if err := b.Append(types.TableFilter, types.InputChain, spec); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyWiderWorldToContainer(b iptables.Backend, section *types.WiderWorldToContainer, res *resolution) error {
	if section == nil {
		return nil
	}
	for i, rule := range section.Rules {
		if _, ok := res.network(rule.Network); !ok {
			klog.V(4).Infof("wider_world_to_container rule %d: network %q not attached (%s), skipping", i, rule.Network, res.fam)
			continue
		}
		dstIP, ok := res.endpointIP(rule.DstContainer, rule.Network)
		if !ok {
			klog.V(4).Infof("wider_world_to_container rule %d: dst %q not on %q (%s), skipping", i, rule.DstContainer, rule.Network, res.fam)
			continue
		}

		for _, ep := range rule.ExposePorts {
			forward := "-d " + dstIP
			if rule.ExternalNetworkInterface != "" {
				forward += " -i " + rule.ExternalNetworkInterface
			}
			forward += fmt.Sprintf(" -p %s --dport %d -j ACCEPT", ep.Proto, ep.ContainerPort)
			if err := b.Append(types.TableFilter, types.ForwardChain, forward); err != nil {
				return err
			}

			var prerouting string
			if rule.ExternalNetworkInterface != "" {
				prerouting = "-i " + rule.ExternalNetworkInterface + " "
			}
			prerouting += fmt.Sprintf("-p %s --dport %d -j DNAT --to-destination %s", ep.Proto, ep.HostPort, dnatDestination(res.fam, dstIP, ep.ContainerPort))
			if err := b.Append(types.TableNat, types.PreroutingChain, prerouting); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyContainerDNAT(b iptables.Backend, section *types.ContainerDNAT, res *resolution) error {
	if section == nil {
		return nil
	}
	for i, rule := range section.Rules {
		if _, ok := res.network(rule.DstNetwork); !ok {
			klog.V(4).Infof("container_dnat rule %d: dst network %q not attached (%s), skipping", i, rule.DstNetwork, res.fam)
			continue
		}
		dstIP, ok := res.endpointIP(rule.DstContainer, rule.DstNetwork)
		if !ok {
			klog.V(4).Infof("container_dnat rule %d: dst %q not on %q (%s), skipping", i, rule.DstContainer, rule.DstNetwork, res.fam)
			continue
		}

		var spec string
		if rule.SrcNetwork != "" {
			n, ok := res.network(rule.SrcNetwork)
			if !ok {
				klog.V(4).Infof("container_dnat rule %d: src network %q not attached (%s), skipping", i, rule.SrcNetwork, res.fam)
				continue
			}
			spec += "-i " + n.BridgeInterface + " "
			if rule.SrcContainer != "" {
				ip, ok := res.endpointIP(rule.SrcContainer, rule.SrcNetwork)
				if !ok {
					klog.V(4).Infof("container_dnat rule %d: src %q not on %q (%s), skipping", i, rule.SrcContainer, rule.SrcNetwork, res.fam)
					continue
				}
				spec += "-s " + ip + " "
			}
		}

		ep := rule.ExposePort
		spec += fmt.Sprintf("-p %s --dport %d -j DNAT --to-destination %s", ep.Proto, ep.HostPort, dnatDestination(res.fam, dstIP, ep.ContainerPort))
		if err := b.Append(types.TableNat, types.PreroutingChain, spec); err != nil {
			return err
		}
	}
	return nil
}

func dnatDestination(fam iptables.Protocol, ip string, port uint16) string {
	if fam == iptables.ProtocolIPv6 {
		return fmt.Sprintf("[%s]:%d", ip, port)
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

func withFilter(spec, filter string) string {
	if strings.TrimSpace(filter) == "" {
		return spec
	}
	return spec + " " + strings.TrimSpace(filter)
}
