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

// Package client defines the handle interface for tenant data sources.
//
// A DataSourceClient wraps one tenant's isolated store behind scoped
// operations that require the tenant's data-source identifier
// (MappedTenantID) as a typed argument. Using the control-plane tenant id
// to filter rows is the one bug this subsystem must make impossible:
// the wrong id either leaks another tenant's data or silently returns
// nothing. The type system enforces the boundary instead of convention.
package client
