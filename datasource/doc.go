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

// Package datasource manages access to per-tenant isolated data stores.
//
// Each Trellis tenant's operational data lives in a physically separate
// backing store; a shared control-plane store holds the tenant metadata
// and encrypted connection credentials. This package resolves a
// control-plane tenant identifier to a live, capacity-bounded client
// handle for the tenant's own store:
//
//   - CredentialCipher: AES-256-GCM encryption of connection secrets at
//     rest, in the iv:tag:ciphertext base64 wire format.
//   - TenantConfigCache: TTL-bounded cache of decrypted tenant connection
//     configuration, loaded from the control plane.
//   - ClientPool: capacity-bounded, TTL-evicted cache of live handles
//     keyed by (tenant, role).
//   - TenantIDMapper: maps the control-plane tenant id to the tenant's
//     identifier inside its own store.
//   - DataSourceManager: the facade composing all of the above; the only
//     component the rest of the system calls directly.
//
// Construct one DataSourceManager per process and pass it into request
// handlers. Typed errors (ConfigurationError, DecryptionError,
// PoolExhaustedError, TenantNotFoundError) propagate to callers
// unchanged; only connection tests convert failures into data.
package datasource
