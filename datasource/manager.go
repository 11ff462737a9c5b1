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

package datasource

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"trellis/platform/datasource/client"
)

// DefaultCleanupInterval is the cadence of the background sweep covering
// both the config cache and the client pool.
const DefaultCleanupInterval = 10 * time.Minute

// ConnectionTestResult is the structured outcome of a connection test.
// Failures are data here, never errors: the test is a diagnostic
// primitive, not a request-path primitive.
type ConnectionTestResult struct {
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// InvalidationPublisher broadcasts a tenant invalidation to peer replicas.
type InvalidationPublisher interface {
	Publish(ctx context.Context, tenantID string) error
}

// ManagerOptions holds options for constructing a DataSourceManager
type ManagerOptions struct {
	Store           ControlPlaneStore
	MasterKey       []byte
	Builder         ClientBuilder
	MaxClients      int
	ConfigTTL       time.Duration
	ClientTTL       time.Duration
	CleanupInterval time.Duration
	MetricsEnabled  bool
	Logger          *log.Logger
}

// DataSourceManager is the facade composing the credential cipher, config
// cache, client pool and tenant id mapper. It is the only entry point the
// rest of the system may call. Construct one instance at process start and
// pass it by reference into request handlers.
type DataSourceManager struct {
	configs *TenantConfigCache
	pool    *ClientPool
	mapper  *TenantIDMapper
	metrics *MetricsRecorder
	builder ClientBuilder

	cleanupInterval time.Duration
	cleanupOnce     sync.Once

	publisher InvalidationPublisher
	pubMu     sync.RWMutex

	logger *log.Logger
}

// NewDataSourceManager constructs the manager. Configuration is read once
// at construction time; later changes to process configuration have no
// effect on a running manager.
func NewDataSourceManager(opts ManagerOptions) (*DataSourceManager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[DATASOURCE] ", log.LstdFlags)
	}

	cipher, err := NewCredentialCipher(opts.MasterKey)
	if err != nil {
		return nil, err
	}

	metrics := NewMetricsRecorder(opts.MetricsEnabled)

	configs := NewTenantConfigCache(TenantConfigCacheOptions{
		Store:   opts.Store,
		Cipher:  cipher,
		TTL:     opts.ConfigTTL,
		Metrics: metrics,
		Logger:  logger,
	})

	pool := NewClientPool(ClientPoolOptions{
		Configs:    configs,
		Builder:    opts.Builder,
		MaxClients: opts.MaxClients,
		TTL:        opts.ClientTTL,
		Metrics:    metrics,
		Logger:     logger,
	})

	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &DataSourceManager{
		configs:         configs,
		pool:            pool,
		mapper:          NewTenantIDMapper(configs),
		metrics:         metrics,
		builder:         opts.Builder,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}, nil
}

// GetClient returns the pooled data source client for a tenant and role.
// An empty role defaults to RoleAnon. Typed errors (PoolExhaustedError,
// TenantNotFoundError, DecryptionError) propagate unchanged.
func (m *DataSourceManager) GetClient(ctx context.Context, tenantID string, role client.Role) (client.DataSourceClient, error) {
	if role == "" {
		role = client.RoleAnon
	}
	if !role.Valid() {
		return nil, NewConfigurationError("unknown access role: "+string(role), nil)
	}
	return m.pool.GetClient(ctx, tenantID, role)
}

// GetTenantConnectionConfig returns the tenant's decrypted connection
// config. Exposed for diagnostics.
func (m *DataSourceManager) GetTenantConnectionConfig(ctx context.Context, tenantID string) (*TenantConnectionConfig, error) {
	return m.configs.Get(ctx, tenantID)
}

// GetTenantIDInDataSource resolves the tenant's identifier inside its own
// isolated store. Every row-level query must be scoped by this id.
func (m *DataSourceManager) GetTenantIDInDataSource(ctx context.Context, tenantID string) (client.MappedTenantID, error) {
	return m.mapper.GetTenantIDInDataSource(ctx, tenantID)
}

// TestTenantConnection issues one round trip against the tenant's store
// through a transient client that never enters the pool. All failures are
// captured in the result; this method never returns an error.
func (m *DataSourceManager) TestTenantConnection(ctx context.Context, tenantID string) ConnectionTestResult {
	result := ConnectionTestResult{Timestamp: time.Now()}

	cfg, err := m.configs.Get(ctx, tenantID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	handle, err := m.builder(ctx, cfg, client.RoleAnon)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() {
		if err := handle.Close(); err != nil {
			m.logger.Printf("Error closing test client for tenant %s: %v", tenantID, err)
		}
	}()

	if err := handle.Ping(ctx); err != nil {
		result.Latency = time.Since(start)
		result.Error = err.Error()
		return result
	}

	result.Latency = time.Since(start)
	result.Success = true
	return result
}

// Invalidate drops the tenant's cached config and pooled clients, and
// broadcasts the invalidation to peer replicas when a publisher is
// attached. Called after an administrative credential update.
func (m *DataSourceManager) Invalidate(ctx context.Context, tenantID string) {
	m.invalidateLocal(tenantID)

	m.pubMu.RLock()
	publisher := m.publisher
	m.pubMu.RUnlock()

	if publisher != nil {
		if err := publisher.Publish(ctx, tenantID); err != nil {
			m.logger.Printf("Failed to broadcast invalidation for tenant %s: %v", tenantID, err)
		}
	}
}

// invalidateLocal applies an invalidation to this replica only. Also the
// entry point for invalidations received from peers, so it must not
// re-publish.
func (m *DataSourceManager) invalidateLocal(tenantID string) {
	m.configs.Invalidate(tenantID)
	dropped := m.pool.InvalidateTenant(tenantID)
	if dropped > 0 {
		m.logger.Printf("Dropped %d pooled clients for tenant %s", dropped, tenantID)
	}
}

// SetInvalidationPublisher attaches a broadcaster for multi-replica
// deployments. Optional; single-process deployments run without one.
func (m *DataSourceManager) SetInvalidationPublisher(p InvalidationPublisher) {
	m.pubMu.Lock()
	m.publisher = p
	m.pubMu.Unlock()
}

// GetStats returns a snapshot of the pool counters and derived statistics
// for observability endpoints.
func (m *DataSourceManager) GetStats() Stats {
	live := m.pool.Live()
	maxClients := m.pool.MaxClients()

	return Stats{
		PoolMetrics:     m.metrics.Snapshot(),
		LiveClients:     live,
		MaxClients:      maxClients,
		ConfigEntries:   m.configs.Size(),
		PoolUtilization: float64(live) / float64(maxClients) * 100,
		CacheHitRate:    m.metrics.HitRate(),
	}
}

// ResetStats zeroes all counters. Administrative and testing use only.
func (m *DataSourceManager) ResetStats() {
	m.metrics.Reset()
}

// StartCleanup starts the single background goroutine that sweeps expired
// entries from both caches. Subsequent calls are no-ops; the sweep never
// blocks request-serving work and stops when ctx is cancelled.
func (m *DataSourceManager) StartCleanup(ctx context.Context) {
	m.cleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.cleanupInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					m.logger.Println("Stopping periodic cache cleanup")
					return
				case <-ticker.C:
					configsEvicted := m.configs.Cleanup()
					clientsEvicted := m.pool.Cleanup()
					if configsEvicted > 0 || clientsEvicted > 0 {
						m.logger.Printf("Cleanup evicted %d config entries, %d clients",
							configsEvicted, clientsEvicted)
					}
				}
			}
		}()
	})
}

// Close releases all pooled clients. The cleanup goroutine is stopped by
// cancelling the context passed to StartCleanup.
func (m *DataSourceManager) Close() {
	m.pool.CloseAll()
}
