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

	"trellis/platform/datasource/client"
)

// TenantIDMapper resolves a tenant's control-plane identifier to its
// identifier inside its own isolated data source. Every row-level query
// against a tenant's store must be scoped by the mapped id, never the
// control-plane id; the scoped helpers on DataSourceClient only accept
// the client.MappedTenantID type this mapper returns.
type TenantIDMapper struct {
	configs *TenantConfigCache
}

// NewTenantIDMapper creates a mapper backed by the config cache
func NewTenantIDMapper(configs *TenantConfigCache) *TenantIDMapper {
	return &TenantIDMapper{configs: configs}
}

// GetTenantIDInDataSource returns the identifier the tenant uses inside
// its own isolated store.
func (m *TenantIDMapper) GetTenantIDInDataSource(ctx context.Context, tenantID string) (client.MappedTenantID, error) {
	cfg, err := m.configs.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return client.MappedTenantID(cfg.TenantIDInDataSource), nil
}
