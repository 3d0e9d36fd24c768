/*******************************************************************************
* Copyright (C) 2025 the Eclipse BaSyx Authors and Fraunhofer IESE
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

// Package catalogapi is the minimal ops-only HTTP surface (§1.5):
// health and debug endpoints. The resource CRUD routes the REST
// collaborator would expose are out of scope (§1 non-goals "REST
// endpoint wiring").
package catalogapi

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencga/catalog-core/internal/catalogconfig"
)

// AddHealthEndpoint registers a liveness probe, grounded on
// internal/common/endpoints.go AddHealthEndpoint.
func AddHealthEndpoint(r *chi.Mux, cfg *catalogconfig.Config) {
	r.Get(cfg.Server.ContextPath+"/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"UP"}`))
		if err != nil {
			http.Error(w, "failed to write response", http.StatusInternalServerError)
		}
	})
}

// AddReadinessEndpoint registers a readiness probe that additionally
// pings the Postgres pool, since the catalog core has no value to
// offer callers until the Metadata Adaptor backend is reachable.
func AddReadinessEndpoint(r *chi.Mux, cfg *catalogconfig.Config, db *sql.DB) {
	r.Get(cfg.Server.ContextPath+"/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "DOWN", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
	})
}
