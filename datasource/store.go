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

import "context"

// TenantRecord is the raw control-plane row for one tenant, exactly as
// stored: connection secrets still encrypted. The control plane owns this
// data; the manager only reads it.
type TenantRecord struct {
	TenantID               string `json:"tenant_id"`
	DataSourceURL          string `json:"data_source_url"`
	Driver                 string `json:"driver"`
	EncryptedAnonSecret    string `json:"-"`
	EncryptedServiceSecret string `json:"-"`
	Region                 string `json:"region"`
	TenantIDInDataSource   string `json:"tenant_id_in_data_source"`
	PoolMin                int    `json:"pool_min"`
	PoolMax                int    `json:"pool_max"`
}

// ControlPlaneStore loads tenant records from the shared control-plane
// store. Implementations must return *TenantNotFoundError for unknown
// tenant identifiers.
type ControlPlaneStore interface {
	GetTenantRecord(ctx context.Context, tenantID string) (*TenantRecord, error)
}
