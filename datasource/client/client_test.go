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

package client

import (
	"errors"
	"testing"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"anon role", RoleAnon, true},
		{"service role", RoleService, true},
		{"empty role", Role(""), false},
		{"unknown role", Role("superuser"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{
			name: "without cause",
			err:  NewClientError("tenant-1", "Ping", "not connected", nil),
			want: "tenant-1.Ping: not connected",
		},
		{
			name: "with cause",
			err:  NewClientError("tenant-1", "ScopedQuery", "query failed", errors.New("timeout")),
			want: "tenant-1.ScopedQuery: query failed (cause: timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewClientError("tenant-1", "Connect", "handshake failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestMappedTenantID_String(t *testing.T) {
	id := MappedTenantID("ds-tenant-9")
	if id.String() != "ds-tenant-9" {
		t.Errorf("String() = %q, want %q", id.String(), "ds-tenant-9")
	}
}
