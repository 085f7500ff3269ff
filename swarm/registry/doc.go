// Package registry tracks agent identity, status and liveness. Status
// transitions go through conditional updates so the orchestrator, the
// handoff coordinator and the liveness sweep can never double-book an
// agent.
package registry
