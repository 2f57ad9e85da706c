// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: обновление курса, чистку
// одноразовых токенов и админ-сессий, проверку зависших выводов.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/features/payout"
	"fazenda.ton/farm-bot/internal/metrics"
)

// PriceRefresher: фоновое обновление курса (price.Oracle).
type PriceRefresher interface {
	Refresh(ctx context.Context) (float64, bool)
}

// Purger: удаление устаревших записей (tokens.Service, admin.Service).
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgerFunc позволяет передать метод с другим именем как Purger.
type PurgerFunc func(ctx context.Context) (int64, error)

func (f PurgerFunc) Purge(ctx context.Context) (int64, error) { return f(ctx) }

// StuckLister: заявки, застрявшие в processing (payout.Service).
type StuckLister interface {
	Stuck(ctx context.Context, olderThan time.Duration) ([]*payout.Withdrawal, error)
}

// Options: расписание.
type Options struct {
	Location      *time.Location
	PriceInterval time.Duration
	StuckAfter    time.Duration
	AdminIDs      []int64
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	opts     Options
	price    PriceRefresher
	tokens   Purger
	sessions Purger
	stuck    StuckLister
	sendFunc func(userID int64, text string)
}

// NewScheduler создаёт планировщик в часовом поясе бота.
// sendFunc используется для оповещения админов и может быть nil.
func NewScheduler(opts Options, price PriceRefresher, tokens, sessions Purger, stuck StuckLister, sendFunc func(userID int64, text string)) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PriceInterval <= 0 {
		opts.PriceInterval = 45 * time.Second
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = 15 * time.Minute
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(opts.Location)),
		opts:     opts,
		price:    price,
		tokens:   tokens,
		sessions: sessions,
		stuck:    stuck,
		sendFunc: sendFunc,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		fn   func(context.Context)
	}{
		{fmt.Sprintf("@every %s", s.opts.PriceInterval), "price_refresh", s.RefreshPrice},
		{"*/10 * * * *", "token_purge", s.PurgeTokens},
		{"0 * * * *", "stuck_withdrawals", s.CheckStuck},
		{"30 3 * * *", "admin_session_purge", s.PurgeSessions},
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, func() { j.fn(ctx) }); err != nil {
			return fmt.Errorf("ошибка регистрации задачи %s: %w", j.name, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"location":       s.opts.Location.String(),
		"price_interval": s.opts.PriceInterval.String(),
	}).Info("Планировщик задач запущен")

	// прогреваем кэш курса сразу, не дожидаясь первого тика
	go s.RefreshPrice(ctx)
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// RefreshPrice обновляет кэш курса.
func (s *Scheduler) RefreshPrice(ctx context.Context) {
	if s.price == nil {
		return
	}
	if v, ok := s.price.Refresh(ctx); ok {
		log.WithField("price", v).Debug("[CRON] Курс обновлён")
		return
	}
	log.Warn("[CRON] Ни один источник курса не ответил")
}

// PurgeTokens удаляет истёкшие токены кнопок.
func (s *Scheduler) PurgeTokens(ctx context.Context) {
	purge(ctx, s.tokens, "токенов")
}

// PurgeSessions удаляет истёкшие админ-сессии.
func (s *Scheduler) PurgeSessions(ctx context.Context) {
	purge(ctx, s.sessions, "админ-сессий")
}

func purge(ctx context.Context, p Purger, what string) {
	if p == nil {
		return
	}
	n, err := p.Purge(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки " + what)
		return
	}
	if n > 0 {
		log.WithField("deleted", n).Info("[CRON] Очистка " + what)
	}
}

// CheckStuck ищет выводы, застрявшие в processing. Только лог, метрика
// и сообщение админам: автоматически заявки не трогаются.
func (s *Scheduler) CheckStuck(ctx context.Context) {
	if s.stuck == nil {
		return
	}
	list, err := s.stuck.Stuck(ctx, s.opts.StuckAfter)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки зависших выводов")
		return
	}
	metrics.StuckWithdrawals.Set(float64(len(list)))
	if len(list) == 0 {
		return
	}

	for _, w := range list {
		log.WithFields(log.Fields{
			"withdrawal_id":   w.ID,
			"user_id":         w.UserID,
			"amount":          w.Amount,
			"idempotency_key": w.IdempotencyKey,
			"since":           w.UpdatedAt,
		}).Error("[CRON] Вывод завис в processing")
	}

	if s.sendFunc == nil {
		return
	}
	text := fmt.Sprintf("⚠️ %d saque(s) parado(s) em processamento há mais de %s. Verifique o painel do CryptoPay.",
		len(list), s.opts.StuckAfter)
	for _, id := range s.opts.AdminIDs {
		s.sendFunc(id, text)
	}
}
