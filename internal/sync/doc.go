// Package sync implements the localization synchronization core: the
// push and pull planners that diff a local working copy against the
// last-synced state, and the three-way conflict classifier that decides
// between clean application and surfaced conflicts. Planners are pure,
// in-memory diff computations; all I/O stays with the callers.
package sync
