// Package collab manages bounded multi-agent collaboration sessions.
//
// A session groups two or more agents around a shared task and collects
// their contributions across numbered rounds. Sequential sessions enforce a
// fixed speaking order derived from the participant list; parallel sessions
// accept contributions in any order and advance rounds explicitly. Sessions
// complete either on request or when the configured round budget is
// exhausted.
package collab
