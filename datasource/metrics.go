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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache names used as metric labels
const (
	cacheTenantConfig = "tenant_config"
	cacheClientPool   = "client_pool"
)

// Prometheus metrics
var (
	promClientsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trellis_datasource_clients_created_total",
			Help: "Total number of tenant data source clients constructed",
		},
	)
	promPoolExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trellis_datasource_pool_exhausted_total",
			Help: "Total number of requests rejected because the client pool was at capacity",
		},
	)
	promCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trellis_datasource_cache_hits_total",
			Help: "Total cache hits by cache",
		},
		[]string{"cache"},
	)
	promCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trellis_datasource_cache_misses_total",
			Help: "Total cache misses by cache",
		},
		[]string{"cache"},
	)
	promLiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trellis_datasource_live_clients",
			Help: "Number of live pooled tenant clients",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promClientsCreated)
	prometheus.MustRegister(promPoolExhausted)
	prometheus.MustRegister(promCacheHits)
	prometheus.MustRegister(promCacheMisses)
	prometheus.MustRegister(promLiveClients)
}

// PoolMetrics holds the monotonic counters tracked by the manager. Counters
// only reset through an explicit administrative Reset call.
type PoolMetrics struct {
	TotalClientsCreated int64 `json:"total_clients_created"`
	PoolExhaustedCount  int64 `json:"pool_exhausted_count"`
	CacheHits           int64 `json:"cache_hits"`
	CacheMisses         int64 `json:"cache_misses"`
}

// Stats is the observability snapshot returned by the manager: the raw
// counters plus derived percentages and current cache sizes.
type Stats struct {
	PoolMetrics
	LiveClients     int     `json:"live_clients"`
	MaxClients      int     `json:"max_clients"`
	ConfigEntries   int     `json:"config_entries"`
	PoolUtilization float64 `json:"pool_utilization"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// MetricsRecorder tracks counters for the config cache and client pool.
// The in-process counters always count; the enabled flag only controls
// whether events are mirrored into the Prometheus registry.
type MetricsRecorder struct {
	mu             sync.Mutex
	enabled        bool
	clientsCreated int64
	poolExhausted  int64
	hits           int64
	misses         int64
}

// NewMetricsRecorder creates a recorder. enabled controls Prometheus export.
func NewMetricsRecorder(enabled bool) *MetricsRecorder {
	return &MetricsRecorder{enabled: enabled}
}

// RecordCacheHit records a hit on the named cache
func (m *MetricsRecorder) RecordCacheHit(cache string) {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	if m.enabled {
		promCacheHits.WithLabelValues(cache).Inc()
	}
}

// RecordCacheMiss records a miss on the named cache
func (m *MetricsRecorder) RecordCacheMiss(cache string) {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
	if m.enabled {
		promCacheMisses.WithLabelValues(cache).Inc()
	}
}

// RecordClientCreated records construction of a new pooled client
func (m *MetricsRecorder) RecordClientCreated() {
	m.mu.Lock()
	m.clientsCreated++
	m.mu.Unlock()
	if m.enabled {
		promClientsCreated.Inc()
	}
}

// RecordPoolExhausted records a capacity rejection
func (m *MetricsRecorder) RecordPoolExhausted() {
	m.mu.Lock()
	m.poolExhausted++
	m.mu.Unlock()
	if m.enabled {
		promPoolExhausted.Inc()
	}
}

// SetLiveClients updates the live client gauge
func (m *MetricsRecorder) SetLiveClients(n int) {
	if m.enabled {
		promLiveClients.Set(float64(n))
	}
}

// Snapshot returns a copy of the raw counters
func (m *MetricsRecorder) Snapshot() PoolMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PoolMetrics{
		TotalClientsCreated: m.clientsCreated,
		PoolExhaustedCount:  m.poolExhausted,
		CacheHits:           m.hits,
		CacheMisses:         m.misses,
	}
}

// HitRate returns the combined cache hit rate as a percentage (0-100).
// Defined as 0 when no lookups have occurred.
func (m *MetricsRecorder) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total) * 100
}

// Reset zeroes all counters. Administrative and testing use only; never
// called from request paths.
func (m *MetricsRecorder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientsCreated = 0
	m.poolExhausted = 0
	m.hits = 0
	m.misses = 0
}
