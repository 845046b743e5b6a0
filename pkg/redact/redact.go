// redact маскирует персональные данные перед записью в логи.
package redact

import "strings"

const mask = "***"

// Email оставляет первые две руны локальной части и домен целиком.
// Строка без ровно одного '@' маскируется полностью.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return mask
	}

	runes := []rune(local)
	if len(runes) > 2 {
		return string(runes[:2]) + mask + "@" + domain
	}

	return mask + "@" + domain
}
