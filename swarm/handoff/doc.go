// Package handoff transfers ownership of a conversation from one agent to
// another. A handoff is a request/ack protocol, not a fire-and-forget
// event: pending resolves to exactly one of accepted, rejected or expired,
// letting callers distinguish "nobody answered" from "declined".
package handoff
