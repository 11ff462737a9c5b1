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

import "fmt"

// ConfigurationError indicates an operator-level problem: a missing or
// malformed master key, or a broken control-plane record. It is fatal and
// never retried automatically.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return "configuration error: " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{Message: message, Cause: cause}
}

// DecryptionError indicates a malformed ciphertext or a failed AEAD
// authentication check. Treated as tampering or corruption: always
// surfaced, never downgraded to a default value.
type DecryptionError struct {
	Message string
	Cause   error
}

func (e *DecryptionError) Error() string {
	if e.Cause != nil {
		return "decryption error: " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return "decryption error: " + e.Message
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// NewDecryptionError creates a new DecryptionError
func NewDecryptionError(message string, cause error) *DecryptionError {
	return &DecryptionError{Message: message, Cause: cause}
}

// PoolExhaustedError signals that the client pool is at capacity. It is a
// backpressure signal, not a fatal condition; callers should retry with
// backoff or reject the request as retryable.
type PoolExhaustedError struct {
	Live int
	Max  int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("client pool exhausted: %d live clients, max %d", e.Live, e.Max)
}

// TenantNotFoundError indicates an unknown control-plane tenant identifier.
type TenantNotFoundError struct {
	TenantID string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.TenantID)
}

// NewTenantNotFoundError creates a new TenantNotFoundError
func NewTenantNotFoundError(tenantID string) *TenantNotFoundError {
	return &TenantNotFoundError{TenantID: tenantID}
}
