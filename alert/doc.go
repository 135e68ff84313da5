// Package alert forwards security-relevant audit events to RabbitMQ so that
// other systems can react to them, for example by notifying the account
// owner after a refresh token replay.
//
// [AMQPSink] is an audit sink: plug it into Builder.WithAuditSink, alone or
// inside a goSession.MultiSink. Events are published as JSON to a topic
// exchange with routing key "<prefix>.<event_type>".
package alert
