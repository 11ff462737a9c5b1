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
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewConfigurationError("bad master key", cause)

	if err.Error() != "configuration error: bad master key (cause: root cause)" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is must reach the cause through Unwrap")
	}

	bare := NewConfigurationError("bad master key", nil)
	if bare.Error() != "configuration error: bad master key" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestDecryptionError(t *testing.T) {
	cause := fmt.Errorf("cipher: message authentication failed")
	err := NewDecryptionError("authentication failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is must reach the cause through Unwrap")
	}
	var decErr *DecryptionError
	if !errors.As(fmt.Errorf("tenant t1: %w", err), &decErr) {
		t.Error("errors.As must find a wrapped *DecryptionError")
	}
}

func TestPoolExhaustedError(t *testing.T) {
	err := &PoolExhaustedError{Live: 50, Max: 50}
	if err.Error() != "client pool exhausted: 50 live clients, max 50" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTenantNotFoundError(t *testing.T) {
	err := NewTenantNotFoundError("tenant-9")
	if err.Error() != `tenant "tenant-9" not found` {
		t.Errorf("Error() = %q", err.Error())
	}
}
