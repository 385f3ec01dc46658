package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
)

const actorContextKey = "actor"

// 認証基盤が付与する識別ヘッダー
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Identity は認証基盤が付与したヘッダーから操作主体を組み立てるミドルウェア
// 認証そのものは上流（APIゲートウェイ等）の責務であり、ここでは
// X-User-ID / X-User-Role を信頼して受け取るだけ
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get(HeaderUserID)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
			}

			role := reservation.Role(c.Request().Header.Get(HeaderUserRole))
			switch role {
			case reservation.RoleConsumer, reservation.RoleBrandOwner, reservation.RoleStaff:
			case "":
				role = reservation.RoleConsumer
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "不正なロールです")
			}

			c.Set(actorContextKey, reservation.Actor{ID: userID, Role: role})
			return next(c)
		}
	}
}

// ActorFrom はコンテキストから操作主体を取り出す
func ActorFrom(c echo.Context) (reservation.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(reservation.Actor)
	return actor, ok
}
