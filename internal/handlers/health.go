package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthCheck reports process liveness for load balancers and uptime probes.
// It deliberately checks nothing downstream; a wedged database or SMTP relay
// should not take the API out of rotation.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "forge-api",
	})
}
