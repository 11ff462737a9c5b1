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

// Package drivers wires the concrete data source client implementations
// into the manager's client builder.
package drivers

import (
	"context"
	"fmt"
	"time"

	"trellis/platform/datasource"
	"trellis/platform/datasource/client"
	"trellis/platform/datasource/mysql"
	"trellis/platform/datasource/postgres"
)

// factories maps a tenant record's driver field to a client constructor
var factories = map[string]client.Factory{
	"postgres": postgres.New,
	"mysql":    mysql.New,
}

// Supported returns whether a driver name has a registered factory
func Supported(driver string) bool {
	_, ok := factories[driver]
	return ok
}

// Builder returns the ClientBuilder used by the DataSourceManager. It
// selects the factory from the tenant's driver field and hands it the
// role-appropriate secret.
func Builder(timeout time.Duration) datasource.ClientBuilder {
	return func(ctx context.Context, cfg *datasource.TenantConnectionConfig, role client.Role) (client.DataSourceClient, error) {
		factory, ok := factories[cfg.Driver]
		if !ok {
			return nil, datasource.NewConfigurationError(
				fmt.Sprintf("unsupported data source driver %q for tenant %s", cfg.Driver, cfg.TenantID), nil)
		}

		secret := cfg.AnonSecret
		if role == client.RoleService {
			secret = cfg.ServiceSecret
		}

		return factory(ctx, &client.Config{
			TenantID: cfg.TenantID,
			Role:     role,
			DSN:      cfg.DataSourceURL,
			Secret:   secret,
			PoolMin:  cfg.PoolMin,
			PoolMax:  cfg.PoolMax,
			Timeout:  timeout,
		})
	}
}
