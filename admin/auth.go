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

package admin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Caller identifies an authenticated admin API caller
type Caller struct {
	Subject  string
	TenantID string
	Role     string
}

// authMiddleware rejects requests without a valid bearer token. The
// subject and claims are logged per request for the audit trail.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.callerFromRequest(r)
		if err != nil {
			s.logger.ErrorWithCode("", requestIDFrom(r), "Rejected unauthenticated request",
				http.StatusUnauthorized, err, map[string]interface{}{"path": r.URL.Path})
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}

		s.logger.Debug(caller.TenantID, requestIDFrom(r), "Authenticated admin request",
			map[string]interface{}{"subject": caller.Subject, "path": r.URL.Path})
		next.ServeHTTP(w, r)
	})
}

// callerFromRequest validates the Authorization header and extracts the
// caller's identity from the token claims.
func (s *Server) callerFromRequest(r *http.Request) (*Caller, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("Authorization header is not a bearer token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &Caller{
		Subject:  getClaimString(claims, "sub"),
		TenantID: getClaimString(claims, "tenant_id"),
		Role:     getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
