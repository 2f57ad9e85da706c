// Package price реализует оракул курса криптовалюты в местной валюте (TON → BRL).
// Оракул никогда не возвращает ошибку: при отказе всех источников отдаётся
// последний удачный курс или резервная константа.
package price

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/metrics"
	"fazenda.ton/farm-bot/internal/retry"
)

// Options: параметры кэша и проверки разумности курса.
type Options struct {
	TTL      time.Duration
	Min      float64
	Max      float64
	Fallback float64
	Policy   retry.Policy
	// Now подменяется в тестах
	Now func() time.Time
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TTL:      cfg.PriceCacheTTL,
		Min:      cfg.PriceMin,
		Max:      cfg.PriceMax,
		Fallback: cfg.PriceFallback,
		Policy:   retry.Default("price"),
	}
}

// Oracle кэширует курс и опрашивает источники по порядку.
type Oracle struct {
	sources []Source
	opts    Options

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
}

// NewOracle создаёт оракул. Кэш пуст до первого удачного запроса.
func NewOracle(sources []Source, opts Options) *Oracle {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fallback <= 0 {
		opts.Fallback = 17.0
	}
	return &Oracle{sources: sources, opts: opts}
}

// Rate возвращает курс: свежий кэш, иначе новый запрос, иначе
// последний удачный курс, иначе резервную константу.
func (o *Oracle) Rate(ctx context.Context) float64 {
	if v, ok := o.cached(); ok {
		return v
	}
	if v, ok := o.Refresh(ctx); ok {
		return v
	}

	o.mu.Lock()
	last := o.price
	o.mu.Unlock()
	if last > 0 {
		log.WithField("price", last).Warn("Все источники курса недоступны, используем последний курс")
		return last
	}
	log.WithField("price", o.opts.Fallback).Warn("Все источники курса недоступны, используем резервный курс")
	return o.opts.Fallback
}

// Refresh опрашивает источники и обновляет кэш первым разумным значением.
// Вызывается и из Rate, и из фоновой задачи.
func (o *Oracle) Refresh(ctx context.Context) (float64, bool) {
	for _, src := range o.sources {
		v, err := retry.Do(ctx, o.opts.Policy, src.Fetch)
		if err != nil {
			metrics.PriceFetches.WithLabelValues(src.Name(), "error").Inc()
			log.WithField("source", src.Name()).WithError(err).Debug("Источник курса недоступен")
			continue
		}
		if !o.sane(v) {
			metrics.PriceFetches.WithLabelValues(src.Name(), "insane").Inc()
			log.WithFields(log.Fields{
				"source": src.Name(),
				"price":  v,
			}).Warn("Курс вне допустимого диапазона, пропускаем")
			continue
		}

		metrics.PriceFetches.WithLabelValues(src.Name(), "ok").Inc()
		metrics.PriceCurrent.Set(v)

		o.mu.Lock()
		o.price = v
		o.fetchedAt = o.opts.Now()
		o.mu.Unlock()
		return v, true
	}
	return 0, false
}

// Snapshot возвращает закэшированный курс и время его получения.
func (o *Oracle) Snapshot() (float64, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.price, o.fetchedAt
}

func (o *Oracle) cached() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.price <= 0 {
		return 0, false
	}
	if o.opts.Now().Sub(o.fetchedAt) >= o.opts.TTL {
		return 0, false
	}
	return o.price, true
}

func (o *Oracle) sane(v float64) bool {
	if v <= 0 {
		return false
	}
	if o.opts.Max > 0 && (v < o.opts.Min || v > o.opts.Max) {
		return false
	}
	return true
}
