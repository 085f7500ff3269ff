// Package orchestrator queues work items, assigns them to available agents
// and tracks completion, failure and retry. Assignment is race-free: the
// agent is claimed with a conditional idle->busy update before the task is
// claimed pending->assigned, and a lost task claim releases the agent again.
package orchestrator
