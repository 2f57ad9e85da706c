package bot

import (
	"errors"
	"strings"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/tokens"
	"fazenda.ton/farm-bot/internal/ledger"
)

var (
	// errNoArgs: команда без аргумента; вместо ошибки показываем меню
	errNoArgs = errors.New("sem argumentos")
	// errNotLedger: команда не денежная
	errNotLedger = errors.New("não é operação de saldo")
)

// CommandParser разбирает команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
	menu          map[string]string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
		menu:          menuCommands,
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Кнопки главного меню превращаются в свои команды.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if cmd, ok := p.menu[text]; ok {
		return cmd, nil, true
	}

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	// /saldo@FazendaTonBot в группах
	command, _, _ := strings.Cut(parts[0], "@")
	command = strings.ToLower(command)
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}

// ParseIntent превращает денежную команду в ledger.Intent.
func ParseIntent(cmd string, args []string) (ledger.Intent, error) {
	switch cmd {
	case "coletar":
		return ledger.Collect{}, nil

	case "converter":
		return ledger.ConvertMaterials{}, nil

	case "trocar":
		if len(args) == 0 {
			return nil, errNoArgs
		}
		switch strings.ToLower(args[0]) {
		case "tudo", "all", "max":
			return ledger.Swap{All: true}, nil
		}
		amount, err := parseFloat(strings.Join(args, ""))
		if err != nil {
			return nil, err
		}
		return ledger.Swap{Amount: amount}, nil

	case "sacar":
		if len(args) == 0 {
			return nil, errNoArgs
		}
		amount, err := parseFloat(strings.Join(args, ""))
		if err != nil {
			return nil, err
		}
		return ledger.Withdraw{Amount: amount}, nil

	case "comprar":
		if len(args) == 0 {
			return nil, errNoArgs
		}
		unit, err := farm.Lookup(strings.Join(args, " "))
		if err != nil {
			return nil, err
		}
		return ledger.Buy{Unit: unit.Key}, nil
	}
	return nil, errNotLedger
}

// IntentFromCallback восстанавливает Intent из погашенного токена.
func IntentFromCallback(action, payload string) (ledger.Intent, error) {
	switch action {
	case tokens.ActionCollect:
		return ledger.Collect{}, nil
	case tokens.ActionConvert:
		return ledger.ConvertMaterials{}, nil
	case tokens.ActionSwap:
		// кнопка всегда несёт сумму; «всё на момент нажатия» не принимается
		amount, err := parseFloat(payload)
		if err != nil {
			return nil, err
		}
		return ledger.Swap{Amount: amount}, nil
	case tokens.ActionBuy:
		unit, err := farm.Lookup(payload)
		if err != nil {
			return nil, err
		}
		return ledger.Buy{Unit: unit.Key}, nil
	}
	return nil, common.ErrReplayedOrExpired
}

func parseFloat(s string) (float64, error) {
	d, err := common.ParseAmount(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
