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

// Package admin exposes the operator HTTP API: health and Prometheus
// endpoints plus JWT-protected routes for pool stats, connection tests
// and tenant cache invalidation.
package admin
