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
package handler

import (
	"github.com/docker/docker/api/types/events"
	"k8s.io/klog/v2"
)

/* Event: Docker daemon message. Returns true when the event can
 * change the synthesized ruleset and a reconcile is needed.
 */
func RelevantEvent(ev events.Message) bool {
	switch ev.Type {
	case events.ContainerEventType:
		switch ev.Action {
		case "start", "die", "destroy":
			klog.V(2).Infof("Container event: %s %s", ev.Action, actorName(ev))
			/* Need reconcile */
			return true
		}
	case events.NetworkEventType:
		switch ev.Action {
		case "connect", "disconnect":
			klog.V(2).Infof("Network event: %s %s", ev.Action, actorName(ev))
			/* Need reconcile */
			return true
		}
	}
	klog.V(6).Infof("Ignoring event: %s/%s", ev.Type, ev.Action)
	/* Doesn't need reconcile */
	return false
}

func actorName(ev events.Message) string {
	if name, ok := ev.Actor.Attributes["name"]; ok {
		return name
	}
	return ev.Actor.ID
}
