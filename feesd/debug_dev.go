//go:build dev
// +build dev

package feesd

import (
	"encoding/json"
	"net/http"

	"github.com/lightninglabs/lndclient"
)

// registerDebugHandlers adds endpoints that are only available in dev
// builds.
func (d *Daemon) registerDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/debug/forcerun", d.forceRun)
}

// forceRun processes every enabled policy immediately, regardless of its
// adjustment interval. This endpoint is only for testing purposes and cannot
// be used on mainnet.
func (d *Daemon) forceRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if lndclient.Network(d.cfg.Network) == lndclient.NetworkMainnet {
		http.Error(w, "force run not allowed on mainnet",
			http.StatusForbidden)
		return
	}

	stats := d.manager.ForceRun(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Errorf("Could not write force run response: %v", err)
	}
}
