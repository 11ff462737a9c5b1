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

// Command datasourced runs the tenant data source manager daemon: it
// serves the admin API, keeps per-tenant client pools warm and listens
// for invalidation broadcasts from peer replicas.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"trellis/platform/admin"
	"trellis/platform/controlplane"
	"trellis/platform/datasource"
	"trellis/platform/datasource/drivers"
	"trellis/platform/shared/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lg := logger.New("datasourced")

	masterKey, err := controlplane.LoadMasterKey(ctx)
	if err != nil {
		log.Fatalf("Master key: %v", err)
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		log.Fatalf("Control plane store: %v", err)
	}
	defer closeStore()

	mgr, err := datasource.NewDataSourceManager(datasource.ManagerOptions{
		Store:          store,
		MasterKey:      masterKey,
		Builder:        drivers.Builder(getDurationEnv("CLIENT_TIMEOUT", 30*time.Second)),
		MaxClients:     getIntEnv("MAX_CLIENTS", datasource.DefaultMaxClients),
		ConfigTTL:      getDurationEnv("CONFIG_TTL", datasource.DefaultConfigTTL),
		ClientTTL:      getDurationEnv("CLIENT_TTL", datasource.DefaultClientTTL),
		MetricsEnabled: os.Getenv("METRICS_ENABLED") != "false",
	})
	if err != nil {
		log.Fatalf("Data source manager: %v", err)
	}
	defer mgr.Close()

	mgr.StartCleanup(ctx)

	// Optional pub/sub fan-out for multi-replica deployments
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		bus, err := datasource.NewInvalidationBus(redisURL, nil)
		if err != nil {
			log.Fatalf("Invalidation bus: %v", err)
		}
		defer bus.Close()

		mgr.SetInvalidationPublisher(bus)
		bus.Listen(ctx, mgr)
		lg.Info("", "", "Invalidation bus connected", map[string]interface{}{"channel": datasource.InvalidationChannel})
	}

	server := admin.NewServer(admin.ServerOptions{
		Manager:   mgr,
		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		Logger:    lg,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + getEnv("PORT", "8084"))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Admin server: %v", err)
		}
	case sig := <-stop:
		lg.Info("", "", "Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Admin server shutdown: %v", err)
	}
	cancel()
}

// openStore picks the control-plane backend from process configuration:
// a Postgres database when DATABASE_URL is set, otherwise a tenant YAML
// file for single-node deployments.
func openStore(ctx context.Context) (datasource.ControlPlaneStore, func(), error) {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		store, err := controlplane.Open(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}

	store, err := controlplane.NewFileStore(getEnv("TENANTS_FILE", "tenants.yaml"))
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid %s %q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid %s %q, using default %s", key, value, defaultValue)
	}
	return defaultValue
}
