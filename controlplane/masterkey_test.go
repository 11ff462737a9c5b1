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

package controlplane

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"trellis/platform/datasource"
)

const validHexKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestLoadMasterKey_FromEnv(t *testing.T) {
	t.Setenv(MasterKeyEnv, validHexKey)
	t.Setenv(MasterKeySecretARNEnv, "")

	key, err := LoadMasterKey(context.Background())
	if err != nil {
		t.Fatalf("LoadMasterKey() error: %v", err)
	}
	if len(key) != datasource.KeySize {
		t.Errorf("key length = %d, want %d", len(key), datasource.KeySize)
	}
	if hex.EncodeToString(key) != validHexKey {
		t.Error("decoded key does not match the configured hex")
	}
}

func TestLoadMasterKey_TrimsWhitespace(t *testing.T) {
	// Keys pulled from secret files often carry a trailing newline
	t.Setenv(MasterKeyEnv, validHexKey+"\n")

	key, err := LoadMasterKey(context.Background())
	if err != nil {
		t.Fatalf("LoadMasterKey() error: %v", err)
	}
	if len(key) != datasource.KeySize {
		t.Errorf("key length = %d, want %d", len(key), datasource.KeySize)
	}
}

func TestLoadMasterKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", validHexKey[:32]},
		{"too long", validHexKey + "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(MasterKeyEnv, tt.raw)

			_, err := LoadMasterKey(context.Background())
			if err == nil {
				t.Fatal("LoadMasterKey() should reject the key")
			}
			var cfgErr *datasource.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error type = %T, want *datasource.ConfigurationError", err)
			}
		})
	}
}

func TestLoadMasterKey_NotConfigured(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")
	t.Setenv(MasterKeySecretARNEnv, "")

	_, err := LoadMasterKey(context.Background())
	if err == nil {
		t.Fatal("LoadMasterKey() must fail when no source is configured")
	}
	var cfgErr *datasource.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *datasource.ConfigurationError", err)
	}
}

func TestMaskARN(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:secretsmanager:eu-west-1:123456789012:secret:trellis-master-key", "...ster-key"},
		{"short", "***"},
	}

	for _, tt := range tests {
		if got := maskARN(tt.arn); got != tt.want {
			t.Errorf("maskARN(%q) = %q, want %q", tt.arn, got, tt.want)
		}
	}
}
