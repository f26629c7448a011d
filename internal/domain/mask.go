package domain

import "strings"

// MaskEmail скрывает адрес автора комментария: остаётся только первый символ.
func MaskEmail(email string) string {
	r := []rune(email)
	if len(r) == 0 {
		return ""
	}
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

// MaskEmailKeepLast - вариант для ответов в треде, сохраняет и последний символ.
func MaskEmailKeepLast(email string) string {
	r := []rune(email)
	if len(r) <= 2 {
		return MaskEmail(email)
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}
