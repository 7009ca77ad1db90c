//go:build !dev
// +build !dev

package feesd

import "net/http"

// registerDebugHandlers is a no-op in non-dev builds.
func (d *Daemon) registerDebugHandlers(_ *http.ServeMux) {}
