// Package admin реализует админ-команды с парольной аутентификацией.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// AdminSession: активная сессия администратора.
type AdminSession struct {
	ID              int64
	UserID          int64
	SessionToken    string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	LastActivity    time.Time
	IsActive        bool
}

// AdminState: состояние диалога с админом.
// /login без пароля переводит диалог в ожидание пароля на 5 минут.
type AdminState struct {
	State     string
	ExpiresAt time.Time
}

const (
	StateNone             = ""
	StateAwaitingPassword = "awaiting_password"
)

// Корзины, которые админ может пополнять вручную
const (
	BucketPayment   = "payment"   // /addpag → payment_cash
	BucketAvailable = "available" // /adddep → available_cash
)

const (
	maxFailedAttempts = 3
	attemptsWindow    = time.Hour
	sessionTTL        = 24 * time.Hour
	stateTTL          = 5 * time.Minute
)
