package testjob

import (
	"strings"
	"unicode"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// Classification — результат сверки ожидаемых outputs.
type Classification struct {
	Status  domain.CheckStatus
	Missing []string
	Present []string
}

// ClassifyOutputs сверяет ожидаемые ключи с результатом воркера.
//
// Ключ считается найденным на верхнем уровне, под "data" или под "result",
// как есть или в snake_case. Пустой список ожидаемых ключей — pass.
func ClassifyOutputs(expected []string, result map[string]any) Classification {
	c := Classification{Status: domain.CheckStatusPass}
	if len(expected) == 0 {
		return c
	}

	scopes := []map[string]any{result}
	for _, k := range []string{"data", "result"} {
		if nested, ok := result[k].(map[string]any); ok {
			scopes = append(scopes, nested)
		}
	}

	for _, key := range expected {
		if hasKey(scopes, key) {
			c.Present = append(c.Present, key)
		} else {
			c.Missing = append(c.Missing, key)
		}
	}

	switch {
	case len(c.Missing) == 0:
		c.Status = domain.CheckStatusPass
	case len(c.Present) > 0:
		c.Status = domain.CheckStatusPartial
	default:
		c.Status = domain.CheckStatusFail
	}
	return c
}

func hasKey(scopes []map[string]any, key string) bool {
	alias := SnakeCase(key)
	for _, scope := range scopes {
		if _, ok := scope[key]; ok {
			return true
		}
		if _, ok := scope[alias]; ok {
			return true
		}
	}
	return false
}

// SnakeCase переводит camelCase в snake_case: "pageCount" → "page_count".
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
