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

package client

import (
	"context"
	"time"
)

// Role selects which of a tenant's connection secrets a client is built with.
type Role string

const (
	// RoleAnon is the default, row-level restricted access role.
	RoleAnon Role = "anon"
	// RoleService is the elevated role used by background automations.
	RoleService Role = "service"
)

// Valid reports whether r is a known access role.
func (r Role) Valid() bool {
	return r == RoleAnon || r == RoleService
}

// MappedTenantID is a tenant's identifier inside its own isolated data
// source, as opposed to its control-plane identifier. Row-level operations
// only accept this type: a control-plane tenant id cannot be passed where a
// data-source-scoped id is required without an explicit, greppable
// conversion.
type MappedTenantID string

// String returns the raw identifier.
func (id MappedTenantID) String() string {
	return string(id)
}

// DataSourceClient is an opaque handle on one tenant's isolated data source,
// bound to a single (tenant, role) pair. Handles are owned by the client
// pool; callers must not retain them across requests or close them.
type DataSourceClient interface {
	// Ping issues one lightweight round-trip against the data source.
	Ping(ctx context.Context) error

	// ScopedQuery executes a read statement filtered to one tenant. The
	// statement must reference the tenant placeholder, which is bound to
	// the mapped id as the final parameter.
	ScopedQuery(ctx context.Context, tenant MappedTenantID, statement string, args ...interface{}) ([]map[string]interface{}, error)

	// ScopedExec executes a write statement filtered to one tenant, with
	// the same placeholder contract as ScopedQuery. Returns rows affected.
	ScopedExec(ctx context.Context, tenant MappedTenantID, statement string, args ...interface{}) (int64, error)

	// Close releases the underlying connections.
	Close() error

	// Driver returns the backing driver name (postgres, mysql).
	Driver() string
}

// Config holds everything needed to construct a DataSourceClient for one
// (tenant, role) pair. The Secret is the already-decrypted role credential;
// it is never serialized.
type Config struct {
	TenantID string
	Role     Role
	DSN      string
	Secret   string `json:"-"`
	PoolMin  int
	PoolMax  int
	Timeout  time.Duration
}

// Factory constructs a client for a fully resolved Config.
type Factory func(ctx context.Context, cfg *Config) (DataSourceClient, error)

// ClientError represents errors raised by data source client operations
type ClientError struct {
	TenantID  string
	Operation string
	Message   string
	Cause     error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.TenantID + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.TenantID + "." + e.Operation + ": " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// NewClientError creates a new ClientError
func NewClientError(tenantID, operation, message string, cause error) *ClientError {
	return &ClientError{
		TenantID:  tenantID,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
