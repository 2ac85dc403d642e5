package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// publishEvent is best effort: a broker problem is logged and never fails
// the request that caused the event.
func publishEvent(c echo.Context, p EventPublisher, eventType string, event any) {
	if p == nil {
		return
	}
	ctx := c.Request().Context()
	if err := p.Publish(ctx, eventType, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}
