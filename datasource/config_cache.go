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
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// DefaultConfigTTL is how long a decrypted tenant config stays cached
// before it is re-fetched from the control plane.
const DefaultConfigTTL = 5 * time.Minute

// TenantConnectionConfig is an immutable snapshot of one tenant's
// connection configuration with both secrets already decrypted. Owned by
// the control plane, cached read-only here with a TTL.
type TenantConnectionConfig struct {
	TenantID             string `json:"tenant_id"`
	DataSourceURL        string `json:"data_source_url"`
	Driver               string `json:"driver"`
	Region               string `json:"region"`
	TenantIDInDataSource string `json:"tenant_id_in_data_source"`
	PoolMin              int    `json:"pool_min"`
	PoolMax              int    `json:"pool_max"`

	// Decrypted secrets, never serialized
	AnonSecret    string `json:"-"`
	ServiceSecret string `json:"-"`
}

// TenantConfigCache is a time-bounded cache of decrypted per-tenant
// connection configuration, backed by the control-plane store.
type TenantConfigCache struct {
	store   ControlPlaneStore
	cipher  *CredentialCipher
	entries map[string]*CacheEntry[*TenantConnectionConfig]
	ttl     time.Duration
	metrics *MetricsRecorder
	mu      sync.RWMutex
	logger  *log.Logger
}

// TenantConfigCacheOptions holds options for creating a TenantConfigCache
type TenantConfigCacheOptions struct {
	Store   ControlPlaneStore
	Cipher  *CredentialCipher
	TTL     time.Duration
	Metrics *MetricsRecorder
	Logger  *log.Logger
}

// NewTenantConfigCache creates a new config cache
func NewTenantConfigCache(opts TenantConfigCacheOptions) *TenantConfigCache {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[TENANT_CONFIG] ", log.LstdFlags)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetricsRecorder(false)
	}
	return &TenantConfigCache{
		store:   opts.Store,
		cipher:  opts.Cipher,
		entries: make(map[string]*CacheEntry[*TenantConnectionConfig]),
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the tenant's decrypted connection config, loading it from
// the control plane on a cache miss. Unknown tenants yield
// *TenantNotFoundError; undecryptable secrets yield *DecryptionError.
func (c *TenantConfigCache) Get(ctx context.Context, tenantID string) (*TenantConnectionConfig, error) {
	c.mu.RLock()
	entry, exists := c.entries[tenantID]
	c.mu.RUnlock()

	if exists && !entry.IsExpired() {
		c.metrics.RecordCacheHit(cacheTenantConfig)
		return entry.Value, nil
	}

	record, err := c.store.GetTenantRecord(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	cfg, err := c.decryptRecord(record)
	if err != nil {
		return nil, err
	}

	// A miss counts only once the load succeeds; failed lookups touch no
	// cache state and must not depress the hit rate.
	c.metrics.RecordCacheMiss(cacheTenantConfig)

	now := time.Now()
	c.mu.Lock()
	c.entries[tenantID] = &CacheEntry[*TenantConnectionConfig]{
		Value:      cfg,
		ExpiresAt:  now.Add(c.ttl),
		LastUpdate: now,
	}
	c.mu.Unlock()

	c.logger.Printf("Loaded connection config for tenant %s (driver: %s, region: %s)",
		tenantID, cfg.Driver, cfg.Region)
	return cfg, nil
}

// decryptRecord turns a raw control-plane row into a usable config. Both
// secrets must authenticate; a tampered record never yields a config.
func (c *TenantConfigCache) decryptRecord(record *TenantRecord) (*TenantConnectionConfig, error) {
	anonSecret, err := c.cipher.Decrypt(record.EncryptedAnonSecret)
	if err != nil {
		return nil, fmt.Errorf("anon secret for tenant %s: %w", record.TenantID, err)
	}
	serviceSecret, err := c.cipher.Decrypt(record.EncryptedServiceSecret)
	if err != nil {
		return nil, fmt.Errorf("service secret for tenant %s: %w", record.TenantID, err)
	}

	return &TenantConnectionConfig{
		TenantID:             record.TenantID,
		DataSourceURL:        record.DataSourceURL,
		Driver:               record.Driver,
		Region:               record.Region,
		TenantIDInDataSource: record.TenantIDInDataSource,
		PoolMin:              record.PoolMin,
		PoolMax:              record.PoolMax,
		AnonSecret:           anonSecret,
		ServiceSecret:        serviceSecret,
	}, nil
}

// Invalidate removes a tenant's cached config immediately. Used after an
// administrative credential update.
func (c *TenantConfigCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	c.logger.Printf("Invalidated connection config for tenant %s", tenantID)
}

// Cleanup removes expired entries and returns the number evicted. Expired
// keys are collected first, then deleted in a second pass.
func (c *TenantConfigCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := expiredKeys(c.entries)
	for _, key := range expired {
		delete(c.entries, key)
	}
	return len(expired)
}

// Size returns the current number of cached entries, expired or not
func (c *TenantConfigCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
