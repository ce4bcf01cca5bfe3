package handler

import (
	"encoding/json"
	"net/http"
)

// HealthCheck reports liveness. It intentionally checks nothing downstream;
// a database outage surfaces through the auth endpoints, not here.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
