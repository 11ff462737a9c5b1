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

// Package controlplane provides the storage backends the data source
// manager reads tenant records from: a Postgres-backed store for
// production and a YAML file store for development and testing. It also
// loads the master encryption key from process configuration or AWS
// Secrets Manager.
package controlplane
