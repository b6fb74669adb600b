// Package pubsub distributes orchestration events beyond the process that
// produced them. A Broker hands out named topics; subscribers attach an
// events.Hook and receive every published event through it. The local broker
// fans out in process, the NATS broker serializes events over the wire with
// the same codecs recorded logs use. PublishHook closes the loop by turning
// an orchestrator hook into a topic publisher.
package pubsub
