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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trellis/platform/datasource/client"
)

// fakeHandle is an in-memory DataSourceClient recording its lifecycle.
type fakeHandle struct {
	tenantID string
	role     client.Role
	secret   string
	pingErr  error

	mu     sync.Mutex
	closed bool
}

func (h *fakeHandle) Ping(ctx context.Context) error { return h.pingErr }

func (h *fakeHandle) ScopedQuery(ctx context.Context, tenant client.MappedTenantID, statement string, args ...interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

func (h *fakeHandle) ScopedExec(ctx context.Context, tenant client.MappedTenantID, statement string, args ...interface{}) (int64, error) {
	return 0, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) Driver() string { return "fake" }

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeBuilder constructs fakeHandles and records every construction.
type fakeBuilder struct {
	mu      sync.Mutex
	built   []*fakeHandle
	err     error
	pingErr error
}

func (b *fakeBuilder) build(ctx context.Context, cfg *TenantConnectionConfig, role client.Role) (client.DataSourceClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	secret := cfg.AnonSecret
	if role == client.RoleService {
		secret = cfg.ServiceSecret
	}
	h := &fakeHandle{tenantID: cfg.TenantID, role: role, secret: secret, pingErr: b.pingErr}
	b.built = append(b.built, h)
	return h, nil
}

func (b *fakeBuilder) builtCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.built)
}

func newTestPool(t *testing.T, maxClients int, metrics *MetricsRecorder, builder *fakeBuilder, tenantIDs ...string) (*ClientPool, *fakeStore) {
	t.Helper()
	store := newFakeStore(t, newTestCipher(t), tenantIDs...)
	configs := newTestConfigCache(t, store, metrics)
	pool := NewClientPool(ClientPoolOptions{
		Configs:    configs,
		Builder:    builder.build,
		MaxClients: maxClients,
		Metrics:    metrics,
	})
	return pool, store
}

func TestClientPool_CapacityBound(t *testing.T) {
	metrics := NewMetricsRecorder(false)
	builder := &fakeBuilder{}
	tenants := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	pool, _ := newTestPool(t, 5, metrics, builder, tenants...)
	ctx := context.Background()

	for _, id := range tenants[:5] {
		if _, err := pool.GetClient(ctx, id, client.RoleAnon); err != nil {
			t.Fatalf("GetClient(%s) error: %v", id, err)
		}
	}
	if pool.Live() != 5 {
		t.Errorf("Live() = %d, want 5", pool.Live())
	}

	_, err := pool.GetClient(ctx, "t6", client.RoleAnon)
	if err == nil {
		t.Fatal("sixth tenant should be rejected at capacity")
	}
	var exhausted *PoolExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *PoolExhaustedError", err)
	}
	if exhausted.Live != 5 || exhausted.Max != 5 {
		t.Errorf("PoolExhaustedError = {Live: %d, Max: %d}, want {5, 5}", exhausted.Live, exhausted.Max)
	}

	snap := metrics.Snapshot()
	if snap.TotalClientsCreated != 5 {
		t.Errorf("TotalClientsCreated = %d, want 5", snap.TotalClientsCreated)
	}
	if snap.PoolExhaustedCount != 1 {
		t.Errorf("PoolExhaustedCount = %d, want 1", snap.PoolExhaustedCount)
	}

	// A cached key is still served at capacity
	if _, err := pool.GetClient(ctx, "t1", client.RoleAnon); err != nil {
		t.Fatalf("cached tenant should be served at capacity: %v", err)
	}
	if builder.builtCount() != 5 {
		t.Errorf("builds = %d, want 5 (hit must not construct)", builder.builtCount())
	}
}

func TestClientPool_HitReturnsSameHandle(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1")
	ctx := context.Background()

	h1, err := pool.GetClient(ctx, "t1", client.RoleAnon)
	if err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}
	h2, err := pool.GetClient(ctx, "t1", client.RoleAnon)
	if err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}
	if h1 != h2 {
		t.Error("repeated requests for the same (tenant, role) must share one handle")
	}
	if builder.builtCount() != 1 {
		t.Errorf("builds = %d, want 1", builder.builtCount())
	}
}

func TestClientPool_RolesAreDistinctKeys(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1")
	ctx := context.Background()

	anon, err := pool.GetClient(ctx, "t1", client.RoleAnon)
	if err != nil {
		t.Fatalf("GetClient(anon) error: %v", err)
	}
	service, err := pool.GetClient(ctx, "t1", client.RoleService)
	if err != nil {
		t.Fatalf("GetClient(service) error: %v", err)
	}
	if anon == service {
		t.Error("anon and service handles must be distinct")
	}
	if builder.builtCount() != 2 {
		t.Errorf("builds = %d, want 2", builder.builtCount())
	}

	// Each handle carries its role's secret
	if builder.built[0].secret != "anon-secret-t1" {
		t.Errorf("anon handle secret = %q", builder.built[0].secret)
	}
	if builder.built[1].secret != "service-secret-t1" {
		t.Errorf("service handle secret = %q", builder.built[1].secret)
	}
}

func TestClientPool_BuilderErrorPropagates(t *testing.T) {
	builder := &fakeBuilder{err: fmt.Errorf("connection refused")}
	metrics := NewMetricsRecorder(false)
	pool, _ := newTestPool(t, 10, metrics, builder, "t1")

	_, err := pool.GetClient(context.Background(), "t1", client.RoleAnon)
	if err == nil {
		t.Fatal("builder failure must propagate")
	}
	if pool.Live() != 0 {
		t.Errorf("Live() = %d after failed construction, want 0", pool.Live())
	}
	if metrics.Snapshot().TotalClientsCreated != 0 {
		t.Error("failed construction must not count as a created client")
	}
}

func TestClientPool_UnknownTenant(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1")

	_, err := pool.GetClient(context.Background(), "ghost", client.RoleAnon)
	var notFound *TenantNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *TenantNotFoundError", err)
	}
	if builder.builtCount() != 0 {
		t.Error("no handle may be built for an unknown tenant")
	}
}

func TestClientPool_CleanupClosesOnlyExpired(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1", "t2")
	ctx := context.Background()

	if _, err := pool.GetClient(ctx, "t1", client.RoleAnon); err != nil {
		t.Fatalf("GetClient(t1) error: %v", err)
	}
	if _, err := pool.GetClient(ctx, "t2", client.RoleAnon); err != nil {
		t.Fatalf("GetClient(t2) error: %v", err)
	}

	pool.mu.Lock()
	pool.clients[poolKey{tenantID: "t1", role: client.RoleAnon}].ExpiresAt = time.Now().Add(-1 * time.Second)
	pool.mu.Unlock()

	if evicted := pool.Cleanup(); evicted != 1 {
		t.Errorf("Cleanup() = %d, want 1", evicted)
	}
	if !builder.built[0].isClosed() {
		t.Error("evicted handle must be closed")
	}
	if builder.built[1].isClosed() {
		t.Error("live handle must not be closed")
	}
	if pool.Live() != 1 {
		t.Errorf("Live() = %d, want 1", pool.Live())
	}
}

func TestClientPool_InvalidateTenantDropsAllRoles(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1", "t2")
	ctx := context.Background()

	if _, err := pool.GetClient(ctx, "t1", client.RoleAnon); err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}
	if _, err := pool.GetClient(ctx, "t1", client.RoleService); err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}
	if _, err := pool.GetClient(ctx, "t2", client.RoleAnon); err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}

	if dropped := pool.InvalidateTenant("t1"); dropped != 2 {
		t.Errorf("InvalidateTenant() = %d, want 2", dropped)
	}
	if pool.Live() != 1 {
		t.Errorf("Live() = %d, want 1", pool.Live())
	}
	for _, h := range builder.built {
		if h.tenantID == "t1" && !h.isClosed() {
			t.Errorf("t1 handle (role %s) must be closed after invalidation", h.role)
		}
		if h.tenantID == "t2" && h.isClosed() {
			t.Error("t2 handle must survive t1's invalidation")
		}
	}
}

func TestClientPool_CloseAll(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1", "t2")
	ctx := context.Background()

	for _, id := range []string{"t1", "t2"} {
		if _, err := pool.GetClient(ctx, id, client.RoleAnon); err != nil {
			t.Fatalf("GetClient(%s) error: %v", id, err)
		}
	}

	pool.CloseAll()
	if pool.Live() != 0 {
		t.Errorf("Live() = %d after CloseAll, want 0", pool.Live())
	}
	for _, h := range builder.built {
		if !h.isClosed() {
			t.Errorf("handle for %s must be closed after CloseAll", h.tenantID)
		}
	}
}

func TestClientPool_ReplacedExpiredHandleClosed(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 10, NewMetricsRecorder(false), builder, "t1")
	ctx := context.Background()

	first, err := pool.GetClient(ctx, "t1", client.RoleAnon)
	if err != nil {
		t.Fatalf("GetClient() error: %v", err)
	}

	pool.mu.Lock()
	pool.clients[poolKey{tenantID: "t1", role: client.RoleAnon}].ExpiresAt = time.Now().Add(-1 * time.Second)
	pool.mu.Unlock()

	second, err := pool.GetClient(ctx, "t1", client.RoleAnon)
	if err != nil {
		t.Fatalf("GetClient() after expiry: %v", err)
	}
	if second == first {
		t.Fatal("an expired handle must not be served again")
	}
	// The displaced handle is gone from the map, so only the re-request
	// itself can release it.
	if !builder.built[0].isClosed() {
		t.Error("handle displaced by its replacement must be closed")
	}
	if builder.built[1].isClosed() {
		t.Error("replacement handle must stay open")
	}
	if evicted := pool.Cleanup(); evicted != 0 {
		t.Errorf("Cleanup() = %d, want 0 (replacement already evicted the stale entry)", evicted)
	}
	if pool.Live() != 1 {
		t.Errorf("Live() = %d, want 1", pool.Live())
	}
}

func TestClientPool_ExpiredSlotFreesCapacity(t *testing.T) {
	builder := &fakeBuilder{}
	pool, _ := newTestPool(t, 1, NewMetricsRecorder(false), builder, "t1", "t2")
	ctx := context.Background()

	if _, err := pool.GetClient(ctx, "t1", client.RoleAnon); err != nil {
		t.Fatalf("GetClient(t1) error: %v", err)
	}
	if _, err := pool.GetClient(ctx, "t2", client.RoleAnon); err == nil {
		t.Fatal("t2 should be rejected while t1's handle is live")
	}

	pool.mu.Lock()
	pool.clients[poolKey{tenantID: "t1", role: client.RoleAnon}].ExpiresAt = time.Now().Add(-1 * time.Second)
	pool.mu.Unlock()

	// Expired handles do not count against capacity
	if _, err := pool.GetClient(ctx, "t2", client.RoleAnon); err != nil {
		t.Fatalf("GetClient(t2) after t1 expired: %v", err)
	}
}
