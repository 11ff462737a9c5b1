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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)
	log.SetFlags(0)
	f()
	return buf.String()
}

func TestNew(t *testing.T) {
	l := New("datasource")
	if l.Component != "datasource" {
		t.Errorf("Component = %q, want %q", l.Component, "datasource")
	}
	if l.InstanceID == "" {
		t.Error("InstanceID should never be empty")
	}
	if l.Container == "" {
		t.Error("Container should never be empty")
	}
}

func TestLog_StructuredFields(t *testing.T) {
	l := New("datasource")

	out := captureOutput(func() {
		l.Info("tenant-42", "req-1", "client created", map[string]interface{}{
			"role": "anon",
		})
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\noutput: %s", err, out)
	}

	if entry.Level != INFO {
		t.Errorf("Level = %q, want %q", entry.Level, INFO)
	}
	if entry.TenantID != "tenant-42" {
		t.Errorf("TenantID = %q, want %q", entry.TenantID, "tenant-42")
	}
	if entry.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want %q", entry.RequestID, "req-1")
	}
	if entry.Message != "client created" {
		t.Errorf("Message = %q, want %q", entry.Message, "client created")
	}
	if entry.Fields["role"] != "anon" {
		t.Errorf("Fields[role] = %v, want %q", entry.Fields["role"], "anon")
	}
}

func TestErrorWithCode(t *testing.T) {
	l := New("datasource")

	out := captureOutput(func() {
		l.ErrorWithCode("tenant-42", "", "pool exhausted", 503, nil, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry.Level != ERROR {
		t.Errorf("Level = %q, want %q", entry.Level, ERROR)
	}
	if entry.Fields["status_code"] != float64(503) {
		t.Errorf("Fields[status_code] = %v, want 503", entry.Fields["status_code"])
	}
}
