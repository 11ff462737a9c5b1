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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes. Keys are supplied
	// externally as 64-character hex strings.
	KeySize = 32
	// ivSize is the GCM nonce length. 16 bytes, not the Go default of 12:
	// the at-rest format is fixed and must round-trip against records
	// written by other services.
	ivSize = 16
	// tagSize is the GCM authentication tag length.
	tagSize = 16
)

// CredentialCipher provides authenticated encryption of tenant connection
// secrets at rest using AES-256-GCM. The wire format is
// base64(iv):base64(tag):base64(ciphertext).
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher creates a cipher from a 32-byte master key.
func NewCredentialCipher(key []byte) (*CredentialCipher, error) {
	if len(key) != KeySize {
		return nil, NewConfigurationError(
			fmt.Sprintf("master key must be %d bytes, got %d", KeySize, len(key)), nil)
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &CredentialCipher{key: k}, nil
}

// String returns a redacted representation for debugging
func (c *CredentialCipher) String() string {
	return "CredentialCipher{key: [REDACTED]}"
}

// GoString returns a redacted Go representation
func (c *CredentialCipher) GoString() string {
	return fmt.Sprintf("&CredentialCipher{keyLen: %d}", len(c.key))
}

// Encrypt encrypts a plaintext secret. A fresh random IV is generated per
// call, so encrypting the same plaintext twice yields different outputs.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; the at-rest format
	// keeps the tag as its own segment.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(tag) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts an iv:tag:ciphertext string. It fails closed: any
// malformed segment, wrong IV or tag length, or failed authentication
// check returns a DecryptionError and never a partial plaintext.
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", NewDecryptionError(
			fmt.Sprintf("expected 3 colon-separated segments, got %d", len(parts)), nil)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", NewDecryptionError("invalid base64 in IV segment", err)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", NewDecryptionError("invalid base64 in auth tag segment", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", NewDecryptionError("invalid base64 in ciphertext segment", err)
	}

	if len(iv) != ivSize {
		return "", NewDecryptionError(
			fmt.Sprintf("IV must be %d bytes, got %d", ivSize, len(iv)), nil)
	}
	if len(tag) != tagSize {
		return "", NewDecryptionError(
			fmt.Sprintf("auth tag must be %d bytes, got %d", tagSize, len(tag)), nil)
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", NewDecryptionError("authentication failed", err)
	}

	return string(plaintext), nil
}

func (c *CredentialCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
