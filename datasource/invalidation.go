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
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// InvalidationChannel is the Redis pub/sub channel carrying tenant
// invalidation broadcasts between replicas.
const InvalidationChannel = "trellis:datasource:invalidate"

// InvalidationBus fans tenant invalidations out to every manager replica
// over Redis pub/sub. A credential rotation handled by one replica must
// not leave stale decrypted secrets cached on its peers.
type InvalidationBus struct {
	rdb    *redis.Client
	logger *log.Logger
}

// NewInvalidationBus connects to Redis and verifies the connection.
func NewInvalidationBus(redisURL string, logger *log.Logger) (*InvalidationBus, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "[INVALIDATION_BUS] ", log.LstdFlags)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &InvalidationBus{rdb: rdb, logger: logger}, nil
}

// Publish broadcasts a tenant invalidation to all subscribed replicas
func (b *InvalidationBus) Publish(ctx context.Context, tenantID string) error {
	if err := b.rdb.Publish(ctx, InvalidationChannel, tenantID).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Listen subscribes to the invalidation channel and applies received
// invalidations to the local manager. Runs until ctx is cancelled.
// Received invalidations are applied locally only, never re-published.
func (b *InvalidationBus) Listen(ctx context.Context, mgr *DataSourceManager) {
	sub := b.rdb.Subscribe(ctx, InvalidationChannel)

	go func() {
		defer func() {
			if err := sub.Close(); err != nil {
				b.logger.Printf("Error closing subscription: %v", err)
			}
		}()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				b.logger.Println("Stopping invalidation listener")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.logger.Printf("Received invalidation for tenant %s", msg.Payload)
				mgr.invalidateLocal(msg.Payload)
			}
		}
	}()
}

// Close releases the Redis connection
func (b *InvalidationBus) Close() error {
	return b.rdb.Close()
}
