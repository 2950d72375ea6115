// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package scores records game results and derives leaderboards and
// per-player statistics from them.
//
// Records are immutable once written and always belong to the player that
// submitted or migrated them. Leaderboards and statistics are computed per
// request and never cached.
//
// Ordering is score descending, then creation time ascending, then record ID
// ascending, so equal scores rank the earlier result first and repeated
// calls return the same sequence.
package scores
