// Package chain runs an ensemble of independently seeded searches over one
// dataset and merges their results.
//
// A run proceeds in three phases:
//
//  1. Seeding: a [Seeder] derives one [Spec] per chain, sequentially and in
//     ascending index order. Each spec owns its random generator and the
//     initial branch built from that chain's node order.
//  2. Dispatch: every spec is handed to a bounded worker pool. At most
//     RunConfig.PoolSize searches run at once; the rest queue.
//  3. Merge: the orchestrator waits on chain outcomes, progress units, and
//     the caller's context at once. Successful results are folded into an
//     [Aggregate]; the first failure aborts the run.
//
// # Failure
//
// Runs are fail-fast. When any chain fails, in-flight chains are cancelled,
// the orchestrator waits a bounded grace period for them to stop, and the
// failing chain's error is returned with no aggregate. The error is an
// [errors.ChainError] naming the chain and wrapping the original cause.
//
// # Determinism
//
// For fixed inputs the merged result does not depend on completion order:
// per-chain results are concatenated in chain order and then stably sorted
// by score.
package chain
