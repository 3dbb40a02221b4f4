package introspection

import (
	"fmt"
	"strings"
)

// parseEnumValues reads the member list out of an information_schema
// COLUMN_TYPE such as enum('G','PG','PG-13'). Quotes may be escaped either
// with a backslash or by doubling them.
func parseEnumValues(columnType string) ([]string, error) {
	body, ok := cutEnumBody(columnType)
	if !ok {
		return nil, fmt.Errorf("not an enum definition: %q", columnType)
	}

	var (
		values  []string
		current strings.Builder
		quoted  bool
		pending bool
	)
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if !quoted {
			switch ch {
			case ' ':
			case ',':
				if !pending {
					return nil, fmt.Errorf("unexpected comma at position %d", i)
				}
				pending = false
			case '\'':
				if pending {
					return nil, fmt.Errorf("missing comma before position %d", i)
				}
				quoted = true
				current.Reset()
			default:
				return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
			}
			continue
		}

		switch {
		case ch == '\\':
			if i+1 >= len(body) {
				return nil, fmt.Errorf("unterminated escape")
			}
			i++
			current.WriteByte(body[i])
		case ch == '\'' && i+1 < len(body) && body[i+1] == '\'':
			i++
			current.WriteByte('\'')
		case ch == '\'':
			quoted = false
			pending = true
			values = append(values, current.String())
		default:
			current.WriteByte(ch)
		}
	}

	if quoted {
		return nil, fmt.Errorf("unterminated enum value")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no enum values in %q", columnType)
	}
	return values, nil
}

func cutEnumBody(columnType string) (string, bool) {
	trimmed := strings.TrimSpace(columnType)
	if len(trimmed) < len("enum()") || !strings.EqualFold(trimmed[:len("enum(")], "enum(") || !strings.HasSuffix(trimmed, ")") {
		return "", false
	}
	return trimmed[len("enum(") : len(trimmed)-1], true
}
