//go:build ignore

// generate_hash.go: генерирует Argon2id хеш пароля администратора.
// Запуск: go run scripts/generate_hash.go <senha>
//
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"

	"fazenda.ton/farm-bot/internal/features/admin"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Uso: go run scripts/generate_hash.go <senha>")
		os.Exit(1)
	}

	hash, err := admin.HashPassword(os.Args[1])
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ADMIN_PASSWORD_HASH:")
	fmt.Println(hash)
}
