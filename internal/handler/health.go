package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Pinger reports whether a backing service is reachable.  *sql.DB
// satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is the liveness check used by load balancers.  When db is non-nil
// it is pinged and an unreachable database answers 503.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("health: database unreachable")
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
