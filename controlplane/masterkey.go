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
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"trellis/platform/datasource"
)

// Environment variables consulted by LoadMasterKey, in order of precedence.
const (
	// MasterKeyEnv holds the master key as 64 hex characters.
	MasterKeyEnv = "TRELLIS_MASTER_KEY"
	// MasterKeySecretARNEnv names an AWS Secrets Manager secret whose
	// string value is the 64-hex-character key.
	MasterKeySecretARNEnv = "TRELLIS_MASTER_KEY_SECRET_ARN"
)

// LoadMasterKey resolves the 32-byte credential encryption key from
// process configuration. TRELLIS_MASTER_KEY wins when both sources are
// set. A missing or malformed key is a *datasource.ConfigurationError;
// the process must not start without a valid key.
func LoadMasterKey(ctx context.Context) ([]byte, error) {
	if raw := os.Getenv(MasterKeyEnv); raw != "" {
		return decodeMasterKey(raw)
	}

	if arn := os.Getenv(MasterKeySecretARNEnv); arn != "" {
		raw, err := fetchSecretString(ctx, arn)
		if err != nil {
			return nil, datasource.NewConfigurationError(
				"failed to fetch master key from Secrets Manager", err)
		}
		return decodeMasterKey(raw)
	}

	return nil, datasource.NewConfigurationError(
		fmt.Sprintf("master key not configured: set %s or %s", MasterKeyEnv, MasterKeySecretARNEnv), nil)
}

// decodeMasterKey parses a 64-hex-character key into its 32 raw bytes
func decodeMasterKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, datasource.NewConfigurationError("master key is not valid hex", err)
	}
	if len(key) != datasource.KeySize {
		return nil, datasource.NewConfigurationError(
			fmt.Sprintf("master key must be %d hex characters (%d bytes), got %d bytes",
				datasource.KeySize*2, datasource.KeySize, len(key)), nil)
	}
	return key, nil
}

// fetchSecretString reads a plain string secret from AWS Secrets Manager
func fetchSecretString(ctx context.Context, secretARN string) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}
	return *result.SecretString, nil
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}
