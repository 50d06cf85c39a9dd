// Package event defines the event envelope, the closed catalogue of event
// types and the registry that decodes and validates them.
//
// Payloads form a sealed union: every payload type lives in this package and
// dispatches itself to the matching method of Handler. Adding an event type
// therefore adds a Handler method, and every projection stops compiling until
// it decides what to do with the new type.
//
// Events are addressed to journal streams. Node events live in the stream of
// their content stream. Content stream lifecycle events live in a per-stream
// meta stream and workspace events in a per-workspace stream, so that reading
// a content stream yields only the node history it carries.
package event
