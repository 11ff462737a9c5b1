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

package controlplane

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"trellis/platform/datasource"
)

// tenantQuery reads one tenant's connection row. Secrets come back still
// encrypted; decryption is the manager's job.
const tenantQuery = `
	SELECT tenant_id, data_source_url, driver,
	       encrypted_anon_secret, encrypted_service_secret,
	       region, tenant_id_in_data_source, pool_min, pool_max
	FROM tenant_connections
	WHERE tenant_id = $1`

// SQLStore reads tenant records from the shared control-plane Postgres
// database. It implements datasource.ControlPlaneStore.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open control-plane database handle
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Open connects to the control-plane database and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open control plane database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to control plane database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// GetTenantRecord returns the raw control-plane row for one tenant.
// Unknown tenants yield *datasource.TenantNotFoundError.
func (s *SQLStore) GetTenantRecord(ctx context.Context, tenantID string) (*datasource.TenantRecord, error) {
	var record datasource.TenantRecord
	err := s.db.QueryRowContext(ctx, tenantQuery, tenantID).Scan(
		&record.TenantID,
		&record.DataSourceURL,
		&record.Driver,
		&record.EncryptedAnonSecret,
		&record.EncryptedServiceSecret,
		&record.Region,
		&record.TenantIDInDataSource,
		&record.PoolMin,
		&record.PoolMax,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datasource.NewTenantNotFoundError(tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return &record, nil
}

// Close releases the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}
