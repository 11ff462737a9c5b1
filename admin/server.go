// Copyright 2026 Trellis
// SPDX-License-Identifier: Apache-2.0
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"trellis/platform/datasource"
	"trellis/platform/shared/logger"
)

// Server exposes the administrative HTTP API for the data source manager:
// health, stats, connection tests and tenant invalidation. It is an
// operator surface, never a tenant-facing one.
type Server struct {
	mgr       *datasource.DataSourceManager
	router    *mux.Router
	cors      *cors.Cors
	jwtSecret []byte
	logger    *logger.Logger
	srv       *http.Server
}

// ServerOptions holds options for creating a Server
type ServerOptions struct {
	Manager   *datasource.DataSourceManager
	JWTSecret []byte
	Logger    *logger.Logger
}

// NewServer creates the admin server and registers its routes
func NewServer(opts ServerOptions) *Server {
	lg := opts.Logger
	if lg == nil {
		lg = logger.New("admin")
	}

	s := &Server{
		mgr:       opts.Manager,
		router:    mux.NewRouter(),
		jwtSecret: opts.JWTSecret,
		logger:    lg,
	}

	s.cors = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/datasource/stats", s.statsHandler).Methods("GET")
	api.HandleFunc("/tenants/{id}/test-connection", s.testConnectionHandler).Methods("POST")
	api.HandleFunc("/tenants/{id}/invalidate", s.invalidateHandler).Methods("POST")

	return s
}

// Handler returns the full middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// Start serves the admin API on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.logger.Info("", "", "Admin API listening", map[string]interface{}{"addr": addr})
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "trellis-datasourced",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.GetStats())
}

func (s *Server) testConnectionHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["id"]
	requestID := requestIDFrom(r)

	start := time.Now()
	result := s.mgr.TestTenantConnection(r.Context(), tenantID)
	s.logger.InfoWithDuration(tenantID, requestID, "Connection test completed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"success": result.Success,
		})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) invalidateHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["id"]
	requestID := requestIDFrom(r)

	s.mgr.Invalidate(r.Context(), tenantID)
	s.logger.Info(tenantID, requestID, "Tenant caches invalidated", nil)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "invalidated",
		"tenant_id": tenantID,
	})
}

// requestIDFrom returns the caller-supplied request id, or mints one
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
