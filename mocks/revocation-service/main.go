// Command revocation-service is a local stand-in for the external revocation
// service. It answers every status lookup; entries listed in REVOKED_IDS
// (comma separated credentialStatus ids) report as revoked.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

func main() {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8085"
	}

	revoked := map[string]bool{}
	for _, id := range strings.Split(os.Getenv("REVOKED_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			revoked[id] = true
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/revocations/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var status struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result := "active"
		if revoked[status.ID] {
			result = "revoked"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": result})
	})

	log.Printf("mock revocation service listening on %s (%d revoked entries)", addr, len(revoked))
	log.Fatal(http.ListenAndServe(addr, mux))
}
