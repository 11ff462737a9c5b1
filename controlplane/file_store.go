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
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"trellis/platform/datasource"
)

// tenantsFile is the root structure of a tenant configuration file
type tenantsFile struct {
	Version string                  `yaml:"version"`
	Tenants map[string]tenantRecord `yaml:"tenants"`
}

type tenantRecord struct {
	DataSourceURL          string `yaml:"data_source_url"`
	Driver                 string `yaml:"driver"`
	EncryptedAnonSecret    string `yaml:"encrypted_anon_secret"`
	EncryptedServiceSecret string `yaml:"encrypted_service_secret"`
	Region                 string `yaml:"region,omitempty"`
	TenantIDInDataSource   string `yaml:"tenant_id_in_data_source"`
	PoolMin                int    `yaml:"pool_min,omitempty"`
	PoolMax                int    `yaml:"pool_max,omitempty"`
}

// FileStore reads tenant records from a YAML file. Used for development
// and single-node deployments without a shared control-plane database.
// Environment variable references in the file are expanded on load.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	tenants  map[string]*datasource.TenantRecord
}

// NewFileStore loads and parses the tenant file
func NewFileStore(filePath string) (*FileStore, error) {
	store := &FileStore{filePath: filePath}
	if err := store.reload(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileStore) reload() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read tenant file %s: %w", s.filePath, err)
	}

	expanded := expandEnvVars(string(data))

	var file tenantsFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return fmt.Errorf("failed to parse tenant file: %w", err)
	}
	if file.Version == "" {
		return fmt.Errorf("tenant file must specify a version")
	}

	tenants := make(map[string]*datasource.TenantRecord, len(file.Tenants))
	for id, rec := range file.Tenants {
		if rec.DataSourceURL == "" {
			return fmt.Errorf("tenant %q must specify data_source_url", id)
		}
		if rec.Driver == "" {
			return fmt.Errorf("tenant %q must specify driver", id)
		}
		tenants[id] = &datasource.TenantRecord{
			TenantID:               id,
			DataSourceURL:          rec.DataSourceURL,
			Driver:                 rec.Driver,
			EncryptedAnonSecret:    rec.EncryptedAnonSecret,
			EncryptedServiceSecret: rec.EncryptedServiceSecret,
			Region:                 rec.Region,
			TenantIDInDataSource:   rec.TenantIDInDataSource,
			PoolMin:                rec.PoolMin,
			PoolMax:                rec.PoolMax,
		}
	}

	s.mu.Lock()
	s.tenants = tenants
	s.mu.Unlock()
	return nil
}

// Reload re-reads the tenant file. Call after editing the file; pair with
// a manager invalidation so cached configs pick up the change.
func (s *FileStore) Reload() error {
	return s.reload()
}

// GetTenantRecord implements datasource.ControlPlaneStore
func (s *FileStore) GetTenantRecord(ctx context.Context, tenantID string) (*datasource.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tenants[tenantID]
	if !ok {
		return nil, datasource.NewTenantNotFoundError(tenantID)
	}
	return record, nil
}

// Size returns the number of tenants in the file
func (s *FileStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants)
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, $VAR_NAME and ${VAR_NAME:-default} syntax.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
