package usecases

import (
	"strconv"
	"strings"

	"waflow/internal/entities"
)

// Substitute replaces {key} placeholders in a message template with values
// from the session context plus the built-in {nombre} and {phone}
// variables. The built-ins win over context keys of the same name.
func Substitute(text string, sess *entities.Session, user *entities.User) string {
	vars := make(map[string]string, len(sess.Context)+2)
	for key, value := range sess.Context {
		if strings.HasPrefix(key, "__") {
			continue // reserved engine state, never user-visible
		}
		switch v := value.(type) {
		case string:
			vars[key] = v
		case float64:
			vars[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			vars[key] = strconv.FormatBool(v)
		}
	}
	vars["nombre"] = user.DisplayName()
	vars["phone"] = user.PhoneNumber

	// Single left-to-right pass: substituted values are emitted as-is, so a
	// context value containing "{phone}" never gets expanded again.
	var b strings.Builder
	b.Grow(len(text))
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			b.WriteString(text)
			break
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += open
		if value, ok := vars[text[open+1:end]]; ok {
			b.WriteString(text[:open])
			b.WriteString(value)
		} else {
			// Unknown placeholder stays verbatim.
			b.WriteString(text[:end+1])
		}
		text = text[end+1:]
	}
	return b.String()
}
