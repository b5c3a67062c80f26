// Package events publishes allocation events to an MQTT broker.
//
// The feed is optional and disabled by default. When enabled, each
// assignment, removal, balancing pass, and batch commit produces one JSON
// event on looplogic/events/<kind>. Events are emitted after the operation
// has already returned its result; the engines never depend on delivery.
//
// A nil *Publisher is a safe no-op, so wiring code passes the publisher
// through unconditionally.
package events
