package bot

import (
	"context"
	"time"
)

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allowed applies the per-chat message limit. A failing limiter lets the
// message through.
func (b *Bot) allowed(ctx context.Context, chatID int64) bool {
	if b.limiter == nil || b.config.RateLimitMessages <= 0 {
		return true
	}

	window := time.Duration(b.config.RateLimitWindow) * time.Second
	ok, err := b.limiter.CheckRateLimit(ctx, chatID, b.config.RateLimitMessages, window)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
		return true
	}
	if !ok {
		b.logger.Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
		if b.metrics != nil {
			b.metrics.RateLimited.Inc()
		}
	}
	return ok
}
