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

import "testing"

func TestMetricsRecorder_HitRate(t *testing.T) {
	tests := []struct {
		name   string
		hits   int
		misses int
		want   float64
	}{
		{"no lookups", 0, 0, 0},
		{"all hits", 4, 0, 100},
		{"all misses", 0, 4, 0},
		{"three of four", 3, 1, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetricsRecorder(false)
			for i := 0; i < tt.hits; i++ {
				m.RecordCacheHit(cacheTenantConfig)
			}
			for i := 0; i < tt.misses; i++ {
				m.RecordCacheMiss(cacheClientPool)
			}
			if got := m.HitRate(); got != tt.want {
				t.Errorf("HitRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricsRecorder_Snapshot(t *testing.T) {
	m := NewMetricsRecorder(false)
	m.RecordClientCreated()
	m.RecordClientCreated()
	m.RecordPoolExhausted()
	m.RecordCacheHit(cacheTenantConfig)
	m.RecordCacheMiss(cacheClientPool)

	snap := m.Snapshot()
	if snap.TotalClientsCreated != 2 {
		t.Errorf("TotalClientsCreated = %d, want 2", snap.TotalClientsCreated)
	}
	if snap.PoolExhaustedCount != 1 {
		t.Errorf("PoolExhaustedCount = %d, want 1", snap.PoolExhaustedCount)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Errorf("CacheHits = %d, CacheMisses = %d, want 1/1", snap.CacheHits, snap.CacheMisses)
	}
}

func TestMetricsRecorder_Reset(t *testing.T) {
	m := NewMetricsRecorder(false)
	m.RecordClientCreated()
	m.RecordPoolExhausted()
	m.RecordCacheHit(cacheTenantConfig)
	m.RecordCacheMiss(cacheTenantConfig)

	m.Reset()

	snap := m.Snapshot()
	if snap != (PoolMetrics{}) {
		t.Errorf("Snapshot() after Reset = %+v, want zero counters", snap)
	}
	if m.HitRate() != 0 {
		t.Errorf("HitRate() after Reset = %v, want 0", m.HitRate())
	}
}

func TestMetricsRecorder_CountsWhenExportDisabled(t *testing.T) {
	// The enabled flag gates Prometheus export only; in-process counters
	// always count.
	m := NewMetricsRecorder(false)
	m.RecordClientCreated()
	if m.Snapshot().TotalClientsCreated != 1 {
		t.Error("counters must accumulate with export disabled")
	}
}
