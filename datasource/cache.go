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

import "time"

// CacheEntry represents a cached value with expiration
type CacheEntry[T any] struct {
	Value      T
	ExpiresAt  time.Time
	LastUpdate time.Time
}

// IsExpired checks if the cache entry has expired. An entry is usable
// strictly before its expiry instant; at the instant itself it is already
// expired. Expired entries are excluded from lookups even before a
// cleanup sweep runs.
func (e *CacheEntry[T]) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// expiredKeys collects the keys of expired entries. Collection never
// interleaves with deletion of the same map: callers delete the returned
// keys in a second pass.
func expiredKeys[K comparable, T any](entries map[K]*CacheEntry[T]) []K {
	var keys []K
	for key, entry := range entries {
		if entry.IsExpired() {
			keys = append(keys, key)
		}
	}
	return keys
}
