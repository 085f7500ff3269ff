// Package types provides shared types used across the swarm core,
// including the unified error taxonomy returned by every coordination
// operation.
package types
