// Package tokens выпускает одноразовые короткоживущие токены для inline-кнопок.
// Каждая денежная кнопка несёт свежий токен, поэтому старое меню или
// двойное нажатие не повторит операцию.
package tokens

import "time"

// Token: строка таблицы callback_tokens.
type Token struct {
	ID        string
	UserID    int64
	Action    string
	Payload   string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Reason: причина отказа при погашении.
type Reason string

// Причины отказа; текст показывается пользователю.
const (
	ReasonNone       Reason = ""
	ReasonNotFound   Reason = "Ação não encontrada"
	ReasonExpired    Reason = "Ação expirada, abra o menu novamente"
	ReasonUsed       Reason = "Ação já realizada"
	ReasonNotYours   Reason = "Este botão não é seu"
	ReasonWrongPlace Reason = "Botão inválido"
)

// Result: итог Consume.
type Result struct {
	OK      bool
	Payload string
	Reason  Reason
}

// Действия, защищённые токеном
const (
	ActionCollect = "col"
	ActionConvert = "cnv"
	ActionSwap    = "swp"
	ActionBuy     = "buy"
)
