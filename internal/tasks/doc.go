// Package tasks runs fire-and-forget background jobs on a fixed worker pool.
//
// Jobs are retried with a constant delay up to a bounded number of times.
// Enqueue never waits for the job itself; callers learn only whether the job
// was accepted.
package tasks
