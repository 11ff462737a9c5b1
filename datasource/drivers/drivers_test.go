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

package drivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"trellis/platform/datasource"
	"trellis/platform/datasource/client"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		driver string
		want   bool
	}{
		{"postgres", true},
		{"mysql", true},
		{"mongodb", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			if got := Supported(tt.driver); got != tt.want {
				t.Errorf("Supported(%q) = %v, want %v", tt.driver, got, tt.want)
			}
		})
	}
}

func TestBuilder_UnsupportedDriver(t *testing.T) {
	builder := Builder(5 * time.Second)

	_, err := builder(context.Background(), &datasource.TenantConnectionConfig{
		TenantID: "tenant-1",
		Driver:   "oracle",
	}, client.RoleAnon)

	var cfgErr *datasource.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *ConfigurationError", err)
	}
}
