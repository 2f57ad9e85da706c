// Package common: errors.go определяет ошибки, общие для всех модулей.
// Обработчики сравнивают их через errors.Is и отвечают пользователю
// коротким понятным сообщением. Частные ошибки оборачивают свой класс,
// поэтому errors.Is(err, ErrInvalidInput) ловит и ErrBelowMinimum.
package common

import (
	"errors"
	"fmt"
)

// Классы ошибок леджера
var (
	// ErrInsufficientFunds: операция увела бы один из балансов в минус
	ErrInsufficientFunds = errors.New("saldo insuficiente")
	// ErrInvalidInput: некорректная сумма, адрес или параметр; исправляет пользователь
	ErrInvalidInput = errors.New("entrada inválida")
	// ErrExternalProvider: внешний сервис (курс, выплаты) не ответил или отказал
	ErrExternalProvider = errors.New("serviço externo indisponível")
	// ErrReplayedOrExpired: кнопка устарела, уже использована или чужая
	ErrReplayedOrExpired = errors.New("ação expirada ou já utilizada")
)

// Частные случаи ErrInvalidInput
var (
	ErrInvalidAmount = fmt.Errorf("%w: valor deve ser positivo", ErrInvalidInput)
	ErrBelowMinimum  = fmt.Errorf("%w: valor abaixo do mínimo", ErrInvalidInput)
	ErrInvalidWallet = fmt.Errorf("%w: endereço de carteira inválido", ErrInvalidInput)
	ErrWalletMissing = fmt.Errorf("%w: carteira não cadastrada", ErrInvalidInput)
	ErrUnknownUnit   = fmt.Errorf("%w: animal desconhecido", ErrInvalidInput)
	ErrNothingToDo   = fmt.Errorf("%w: nada para converter", ErrInvalidInput)
)

// ErrOperatorLiquidity: у оператора в CryptoPay не хватает средств на выплату.
// Пользовательский баланс при этом не трогается.
var ErrOperatorLiquidity = fmt.Errorf("%w: liquidez do operador insuficiente", ErrExternalProvider)

// Ошибки админки
var (
	ErrNotAdmin        = errors.New("sem permissão")
	ErrWrongPassword   = errors.New("senha incorreta")
	ErrTooManyAttempts = errors.New("muitas tentativas, aguarde 1 hora")
	ErrSessionExpired  = errors.New("sessão expirada, faça login novamente")
)

// ErrorText переводит ошибку в короткий ответ для чата.
// Неизвестные ошибки не раскрываются пользователю.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrWalletMissing):
		return "❌ Cadastre sua carteira primeiro: /carteira <endereço>"
	case errors.Is(err, ErrInvalidWallet):
		return "❌ Endereço de carteira TON inválido"
	case errors.Is(err, ErrBelowMinimum):
		return "❌ Valor abaixo do mínimo permitido"
	case errors.Is(err, ErrInvalidAmount):
		return "❌ Informe um valor positivo"
	case errors.Is(err, ErrUnknownUnit):
		return "❌ Animal desconhecido"
	case errors.Is(err, ErrNothingToDo):
		return "ℹ️ Nada para converter agora"
	case errors.Is(err, ErrInvalidInput):
		return "❌ Entrada inválida"
	case errors.Is(err, ErrInsufficientFunds):
		return "❌ Saldo insuficiente"
	case errors.Is(err, ErrOperatorLiquidity):
		return "⏳ Saques temporariamente indisponíveis. Tente mais tarde"
	case errors.Is(err, ErrExternalProvider):
		return "⚠️ Serviço de pagamento indisponível. Seu saldo foi preservado"
	case errors.Is(err, ErrReplayedOrExpired):
		return "⌛ Este botão expirou ou já foi usado"
	case errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNotAdmin):
		return "❌ " + err.Error()
	default:
		return "❌ Erro interno. Tente novamente"
	}
}

// IsRejection: отказ по правилам игры (а не поломка): баланс, ввод, устаревшая кнопка.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrReplayedOrExpired)
}
