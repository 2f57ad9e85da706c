package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/tokens"
)

// Кнопки главного меню и команды, в которые они превращаются
var menuCommands = map[string]string{
	"🐾 Meus Animais":        "animais",
	"💰 Meu Saldo":           "saldo",
	"🛒 Comprar":             "comprar",
	"➕ Depositar":           "depositar",
	"🔄 Trocar cash por TON": "trocar",
	"🏦 Sacar":               "sacar",
	"👫 Indique & Ganhe":     "indicar",
	"❓ Ajuda/Suporte":       "ajuda",
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🐾 Meus Animais"),
			tgbotapi.NewKeyboardButton("💰 Meu Saldo"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🛒 Comprar"),
			tgbotapi.NewKeyboardButton("➕ Depositar"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🔄 Trocar cash por TON"),
			tgbotapi.NewKeyboardButton("🏦 Sacar"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("👫 Indique & Ganhe"),
			tgbotapi.NewKeyboardButton("❓ Ajuda/Suporte"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// tokenButton выпускает одноразовый токен и кладёт его в callback_data.
func (b *Bot) tokenButton(ctx context.Context, userID int64, text, action, payload string) (tgbotapi.InlineKeyboardButton, error) {
	id, err := b.tokens.Issue(ctx, userID, action, payload)
	if err != nil {
		return tgbotapi.InlineKeyboardButton{}, err
	}
	return tgbotapi.NewInlineKeyboardButtonData(text, tokens.CallbackData(action, id)), nil
}

// farmKeyboard: «Coletar» и «Converter» под экраном животных.
func (b *Bot) farmKeyboard(ctx context.Context, userID int64) (*tgbotapi.InlineKeyboardMarkup, error) {
	collect, err := b.tokenButton(ctx, userID, "🧺 Coletar", tokens.ActionCollect, "")
	if err != nil {
		return nil, err
	}
	convert, err := b.tokenButton(ctx, userID, "♻️ Converter materiais", tokens.ActionConvert, "")
	if err != nil {
		return nil, err
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(collect, convert))
	return &kb, nil
}

// shopKeyboard: по кнопке на каждое животное, по два в ряд.
func (b *Bot) shopKeyboard(ctx context.Context, userID int64) (*tgbotapi.InlineKeyboardMarkup, error) {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, u := range farm.Catalog() {
		btn, err := b.tokenButton(ctx, userID,
			fmt.Sprintf("%s %s %s", u.Emoji, u.Name, common.FormatCash(u.Price)),
			tokens.ActionBuy, u.Key)
		if err != nil {
			return nil, err
		}
		row = append(row, btn)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb, nil
}

// Фиксированные суммы обмена под меню /trocar.
var swapPresets = []float64{20, 50, 100, 500}

type swapChoice struct {
	label   string
	payload string
}

// swapChoices: кнопки обмена. Каждая несёт сумму, а «tudo» несёт показанный
// в меню баланс: если к нажатию баланс стал меньше, обмен отклоняется.
func swapChoices(paymentCash float64) []swapChoice {
	choices := make([]swapChoice, 0, len(swapPresets)+1)
	for _, v := range swapPresets {
		choices = append(choices, swapChoice{
			label:   common.FormatCash(v),
			payload: strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	if paymentCash > 0 {
		choices = append(choices, swapChoice{
			label:   "🔄 Trocar tudo (" + common.FormatCash(paymentCash) + ")",
			payload: strconv.FormatFloat(paymentCash, 'f', -1, 64),
		})
	}
	return choices
}

// swapKeyboard: суммы в один ряд, «tudo» отдельной строкой.
func (b *Bot) swapKeyboard(ctx context.Context, userID int64, paymentCash float64) (*tgbotapi.InlineKeyboardMarkup, error) {
	var amounts, all []tgbotapi.InlineKeyboardButton
	for i, c := range swapChoices(paymentCash) {
		btn, err := b.tokenButton(ctx, userID, c.label, tokens.ActionSwap, c.payload)
		if err != nil {
			return nil, err
		}
		if i < len(swapPresets) {
			amounts = append(amounts, btn)
		} else {
			all = append(all, btn)
		}
	}
	rows := [][]tgbotapi.InlineKeyboardButton{amounts}
	if len(all) > 0 {
		rows = append(rows, all)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb, nil
}

// swapMenuText: курс и условия обмена.
func swapMenuText(q exchange.Quote, r exchange.Rules, paymentCash float64, asset string) string {
	return fmt.Sprintf(
		"🔄 Trocar cash por %s\n\n📈 Cotação: 1 %s = R$ %s\n💱 1 %s = %d cash\n💼 Seu cash para saque: %s\n\nMínimo: %s cash\nEnvie /trocar <valor> ou toque no botão.",
		asset, asset, common.FormatCash(q.Rate), asset, q.UnitsPerCrypto,
		common.FormatCash(paymentCash), common.FormatCash(r.MinSwap),
	)
}

const helpText = `🌾 Fazenda TON

Compre animais, colete materiais e troque por TON.

/animais — seus animais e produção
/comprar <animal> — comprar um animal
/coletar — coletar materiais
/converter — converter materiais em cash
/trocar <valor|tudo> — trocar cash por TON
/carteira <endereço> — cadastrar carteira TON
/sacar <valor> — sacar TON
/depositar <reais> — depositar via @CryptoBot
/saldo — seus saldos
/extrato — últimas movimentações
/saques — seus saques
/indicar — link de indicação`
