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

const (
	// DefaultMaxClients caps the number of live pooled handles per process.
	DefaultMaxClients = 50
	// DefaultClientTTL is the maximum lifetime of a pooled handle.
	DefaultClientTTL = 1 * time.Hour
)

// ClientBuilder constructs a data source client for a resolved tenant
// config and access role.
type ClientBuilder func(ctx context.Context, cfg *TenantConnectionConfig, role client.Role) (client.DataSourceClient, error)

type poolKey struct {
	tenantID string
	role     client.Role
}

// ClientPool is a capacity-bounded, TTL-evicted cache of live client
// handles keyed by (tenant, role). The pool owns every handle it hands
// out; callers never close them.
type ClientPool struct {
	configs    *TenantConfigCache
	builder    ClientBuilder
	clients    map[poolKey]*CacheEntry[client.DataSourceClient]
	maxClients int
	ttl        time.Duration
	metrics    *MetricsRecorder
	mu         sync.Mutex
	logger     *log.Logger
}

// ClientPoolOptions holds options for creating a ClientPool
type ClientPoolOptions struct {
	Configs    *TenantConfigCache
	Builder    ClientBuilder
	MaxClients int
	TTL        time.Duration
	Metrics    *MetricsRecorder
	Logger     *log.Logger
}

// NewClientPool creates a new client pool
func NewClientPool(opts ClientPoolOptions) *ClientPool {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[CLIENT_POOL] ", log.LstdFlags)
	}
	maxClients := opts.MaxClients
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetricsRecorder(false)
	}
	return &ClientPool{
		configs:    opts.Configs,
		builder:    opts.Builder,
		clients:    make(map[poolKey]*CacheEntry[client.DataSourceClient]),
		maxClients: maxClients,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetClient returns the pooled handle for (tenantID, role), constructing
// one on a miss. Construction happens inside the pool's critical section:
// two concurrent misses for the same key resolve to a single handle, and
// the capacity check is re-verified at construction time. At capacity the
// miss fails with *PoolExhaustedError; that is backpressure, not a fault,
// and the caller should retry or reject the request as retryable.
func (p *ClientPool) GetClient(ctx context.Context, tenantID string, role client.Role) (client.DataSourceClient, error) {
	handle, stale, err := p.acquire(ctx, tenantID, role)
	if stale != nil {
		if cerr := stale.Close(); cerr != nil {
			p.logger.Printf("Error closing replaced client: %v", cerr)
		}
	}
	return handle, err
}

// acquire does the locked lookup-or-construct. When a fresh handle
// replaces an expired entry at the same key, the displaced handle is
// returned so the caller can close it after the lock is released; once
// the slot is overwritten no sweep would ever reach it.
func (p *ClientPool) acquire(ctx context.Context, tenantID string, role client.Role) (client.DataSourceClient, client.DataSourceClient, error) {
	key := poolKey{tenantID: tenantID, role: role}

	p.mu.Lock()
	defer p.mu.Unlock()

	var stale client.DataSourceClient
	if entry, exists := p.clients[key]; exists {
		if !entry.IsExpired() {
			p.metrics.RecordCacheHit(cacheClientPool)
			return entry.Value, nil, nil
		}
		stale = entry.Value
	}

	live := p.liveLocked()
	if live >= p.maxClients {
		p.metrics.RecordPoolExhausted()
		p.logger.Printf("Pool exhausted: %d live clients, max %d (tenant: %s, role: %s)",
			live, p.maxClients, tenantID, role)
		return nil, nil, &PoolExhaustedError{Live: live, Max: p.maxClients}
	}

	cfg, err := p.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	handle, err := p.builder(ctx, cfg, role)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	p.clients[key] = &CacheEntry[client.DataSourceClient]{
		Value:      handle,
		ExpiresAt:  now.Add(p.ttl),
		LastUpdate: now,
	}

	p.metrics.RecordCacheMiss(cacheClientPool)
	p.metrics.RecordClientCreated()
	p.metrics.SetLiveClients(live + 1)
	p.logger.Printf("Created client for tenant %s (role: %s, driver: %s, live: %d/%d)",
		tenantID, role, cfg.Driver, live+1, p.maxClients)

	return handle, stale, nil
}

// liveLocked counts unexpired handles. Callers hold p.mu.
func (p *ClientPool) liveLocked() int {
	live := 0
	for _, entry := range p.clients {
		if !entry.IsExpired() {
			live++
		}
	}
	return live
}

// Live returns the number of unexpired pooled handles
func (p *ClientPool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveLocked()
}

// MaxClients returns the pool capacity
func (p *ClientPool) MaxClients() int {
	return p.maxClients
}

// Cleanup evicts expired handles and returns the number evicted. Expired
// keys are collected first, then deleted in a second pass; evicted handles
// are closed after the map mutation completes.
func (p *ClientPool) Cleanup() int {
	p.mu.Lock()
	expired := expiredKeys(p.clients)
	evicted := make([]client.DataSourceClient, 0, len(expired))
	for _, key := range expired {
		evicted = append(evicted, p.clients[key].Value)
		delete(p.clients, key)
	}
	p.metrics.SetLiveClients(p.liveLocked())
	p.mu.Unlock()

	for _, handle := range evicted {
		if err := handle.Close(); err != nil {
			p.logger.Printf("Error closing evicted client: %v", err)
		}
	}
	return len(expired)
}

// InvalidateTenant drops and closes all pooled handles for a tenant,
// regardless of role. Called after a credential rotation so no handle
// built from the old secrets outlives the update.
func (p *ClientPool) InvalidateTenant(tenantID string) int {
	p.mu.Lock()
	var keys []poolKey
	for key := range p.clients {
		if key.tenantID == tenantID {
			keys = append(keys, key)
		}
	}
	dropped := make([]client.DataSourceClient, 0, len(keys))
	for _, key := range keys {
		dropped = append(dropped, p.clients[key].Value)
		delete(p.clients, key)
	}
	p.metrics.SetLiveClients(p.liveLocked())
	p.mu.Unlock()

	for _, handle := range dropped {
		if err := handle.Close(); err != nil {
			p.logger.Printf("Error closing client for tenant %s: %v", tenantID, err)
		}
	}
	return len(keys)
}

// CloseAll closes every pooled handle. Used for graceful shutdown.
func (p *ClientPool) CloseAll() {
	p.mu.Lock()
	handles := make([]client.DataSourceClient, 0, len(p.clients))
	for _, entry := range p.clients {
		handles = append(handles, entry.Value)
	}
	p.clients = make(map[poolKey]*CacheEntry[client.DataSourceClient])
	p.metrics.SetLiveClients(0)
	p.mu.Unlock()

	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			p.logger.Printf("Error closing client: %v", err)
		}
	}
	p.logger.Printf("Closed %d pooled clients", len(handles))
}
