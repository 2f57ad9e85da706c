// Package retry описывает единую политику повторов для всех внешних вызовов:
// источники курса, CryptoPay. Политика задаётся один раз и тестируется один раз.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrExhausted возвращается, когда все попытки исчерпаны.
var ErrExhausted = errors.New("попытки исчерпаны")

// Policy: расписание повторов.
// Delays[i]: пауза перед попыткой i, поэтому число попыток равно len(Delays).
type Policy struct {
	Name   string
	Delays []time.Duration
	// Retryable решает, имеет ли смысл повторять после ошибки.
	// nil: повторять любую ошибку.
	Retryable func(error) bool
}

// Default: «сразу, через 0.5с, через 1с».
func Default(name string) Policy {
	return Policy{
		Name:   name,
		Delays: []time.Duration{0, 500 * time.Millisecond, time.Second},
	}
}

// MaxAttempts возвращает число попыток (минимум одна).
func (p Policy) MaxAttempts() int {
	if len(p.Delays) == 0 {
		return 1
	}
	return len(p.Delays)
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt < len(p.Delays) {
		return p.Delays[attempt]
	}
	return 0
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do выполняет op по политике p. Неповторяемая ошибка возвращается сразу,
// после последней неудачи: ошибка, обёрнутая в ErrExhausted.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts(); attempt++ {
		if d := p.delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.WithFields(log.Fields{
					"policy":  p.Name,
					"attempt": attempt + 1,
				}).Debug("Успех после повтора")
			}
			return v, nil
		}
		lastErr = err

		if !p.retryable(err) {
			return zero, err
		}
		log.WithFields(log.Fields{
			"policy":  p.Name,
			"attempt": attempt + 1,
			"max":     p.MaxAttempts(),
		}).WithError(err).Debug("Попытка не удалась")
	}

	return zero, fmt.Errorf("%s: %w: %w", p.Name, ErrExhausted, lastErr)
}
