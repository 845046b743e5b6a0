// validation содержит чистые проверки входных данных без побочных эффектов.
package validation

import (
	"strings"
	"unicode"

	"github.com/mcnijman/go-emailaddress"
)

// Email сообщает, является ли строка синтаксически корректным адресом:
// local-part "@" domain, в домене есть хотя бы одна точка и нет пустых меток.
//
// emailaddress.Parse пропускает пустую строку и склейку нескольких адресов,
// поэтому '@' должен встречаться ровно один раз.
func Email(email string) bool {
	if email == "" || strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}

	if strings.Count(email, "@") != 1 {
		return false
	}

	addr, err := emailaddress.Parse(email)
	if err != nil {
		return false
	}

	if addr.LocalPart == "" {
		return false
	}

	labels := strings.Split(addr.Domain, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}

	return true
}
