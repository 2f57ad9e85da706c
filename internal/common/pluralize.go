package common

import "fmt"

// PluralizeAnimals возвращает «animal» или «animais» для числа n.
//
//	PluralizeAnimals(1) → "animal"
//	PluralizeAnimals(0) → "animais"
//	PluralizeAnimals(5) → "animais"
func PluralizeAnimals(n int64) string {
	if n == 1 || n == -1 {
		return "animal"
	}
	return "animais"
}

// PluralizeReferrals: «indicação» / «indicações».
func PluralizeReferrals(n int64) string {
	if n == 1 || n == -1 {
		return "indicação"
	}
	return "indicações"
}

// FormatAnimals форматирует количество: FormatAnimals(3) → "3 animais".
func FormatAnimals(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeAnimals(n))
}
