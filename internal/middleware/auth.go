package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/startup-vision/backend/internal/service/auth"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

type identityKey struct{}

// TokenParser verifies identity tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RequireIdentity 校验 Bearer 令牌（SSE/WebSocket 可用 token 查询参数），
// 并把注册号写入请求上下文
func RequireIdentity(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.RegNumber)))
		})
	}
}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity set by RequireIdentity.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok && identity != ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
