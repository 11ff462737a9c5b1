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

package mysql

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"trellis/platform/datasource/client"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultTimeout is the default per-operation timeout
	DefaultTimeout = 30 * time.Second
)

const secretPlaceholder = "{secret}"

// Client is a MySQL-backed data source client for one tenant's isolated
// store. MySQL tenant stores exist for customers migrated from the legacy
// single-instance deployment; new tenants are provisioned on PostgreSQL.
type Client struct {
	cfg    *client.Config
	db     *sql.DB
	logger *log.Logger
}

// New opens a connection pool against the tenant's store and verifies it
// with a ping.
func New(ctx context.Context, cfg *client.Config) (client.DataSourceClient, error) {
	dsn := strings.ReplaceAll(cfg.DSN, secretPlaceholder, cfg.Secret)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, client.NewClientError(cfg.TenantID, "Connect", "failed to open connection", err)
	}

	maxOpen := cfg.PoolMax
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.PoolMin)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, timeout(cfg))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, client.NewClientError(cfg.TenantID, "Connect", "failed to ping database", err)
	}

	c := &Client{
		cfg:    cfg,
		db:     db,
		logger: log.New(os.Stdout, "[DS_MYSQL] ", log.LstdFlags),
	}
	c.logger.Printf("Connected to data source for tenant %s (role: %s, max_conns: %d)",
		cfg.TenantID, cfg.Role, maxOpen)
	return c, nil
}

// NewFromDB wraps an existing database handle. Used by tests.
func NewFromDB(db *sql.DB, cfg *client.Config) *Client {
	return &Client{
		cfg:    cfg,
		db:     db,
		logger: log.New(os.Stdout, "[DS_MYSQL] ", log.LstdFlags),
	}
}

// Ping issues one lightweight round trip
func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return client.NewClientError(c.cfg.TenantID, "Ping", "not connected", nil)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout(c.cfg))
	defer cancel()
	if err := c.db.PingContext(pingCtx); err != nil {
		return client.NewClientError(c.cfg.TenantID, "Ping", "ping failed", err)
	}
	return nil
}

// ScopedQuery executes a read statement scoped to one tenant. The mapped
// tenant id is bound to the statement's final ? placeholder.
func (c *Client) ScopedQuery(ctx context.Context, tenant client.MappedTenantID, statement string, args ...interface{}) ([]map[string]interface{}, error) {
	if c.db == nil {
		return nil, client.NewClientError(c.cfg.TenantID, "ScopedQuery", "not connected", nil)
	}
	if tenant == "" {
		return nil, client.NewClientError(c.cfg.TenantID, "ScopedQuery", "empty mapped tenant id", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout(c.cfg))
	defer cancel()

	scopedArgs := append(append([]interface{}{}, args...), tenant.String())

	start := time.Now()
	rows, err := c.db.QueryContext(queryCtx, statement, scopedArgs...)
	if err != nil {
		return nil, client.NewClientError(c.cfg.TenantID, "ScopedQuery", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	results, err := scanRows(rows)
	if err != nil {
		return nil, client.NewClientError(c.cfg.TenantID, "ScopedQuery", "failed to scan rows", err)
	}

	c.logger.Printf("Query executed: %d rows in %v (tenant: %s)", len(results), time.Since(start), c.cfg.TenantID)
	return results, nil
}

// ScopedExec executes a write statement scoped to one tenant. Returns rows
// affected.
func (c *Client) ScopedExec(ctx context.Context, tenant client.MappedTenantID, statement string, args ...interface{}) (int64, error) {
	if c.db == nil {
		return 0, client.NewClientError(c.cfg.TenantID, "ScopedExec", "not connected", nil)
	}
	if tenant == "" {
		return 0, client.NewClientError(c.cfg.TenantID, "ScopedExec", "empty mapped tenant id", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout(c.cfg))
	defer cancel()

	scopedArgs := append(append([]interface{}{}, args...), tenant.String())

	result, err := c.db.ExecContext(execCtx, statement, scopedArgs...)
	if err != nil {
		return 0, client.NewClientError(c.cfg.TenantID, "ScopedExec", "command execution failed", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		c.logger.Printf("Warning: Could not get rows affected: %v", err)
		affected = 0
	}
	return affected, nil
}

// Close releases the underlying connections
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return client.NewClientError(c.cfg.TenantID, "Close", "failed to close connection", err)
	}
	return nil
}

// Driver returns the backing driver name
func (c *Client) Driver() string {
	return "mysql"
}

func timeout(cfg *client.Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return DefaultTimeout
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}
