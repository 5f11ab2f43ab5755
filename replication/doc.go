// Package replication keeps networked entity state consistent across peers.
//
// Three monitors share the same pipeline. The authority samples its host,
// diffs the sample against what it last transmitted, and encodes only the
// changed fields behind a bit mask. Receivers decode the frame atomically,
// resolve platform-relative coordinates, and glide toward the new target
// every render tick. Send cadence comes from the tick scheduler, and for
// props from a per-observer distance scheduler.
package replication
