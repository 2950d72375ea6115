// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import "github.com/geoelevate/geoelevate/pkg/errutil"

// ErrNotFound is returned by repositories when a requested player does not exist.
var ErrNotFound = errutil.ErrNotFound
