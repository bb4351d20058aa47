package docgen

import (
	"strings"
)

// Синтаксис маркеров:
//   #key   - подстановка значения поля (регистр не важен);
//   ##     - литеральный символ #;
//   # за которым не идет латинская буква или _ - обычный текст.
// Идентификатор вне словаря считается ошибкой, а не текстом.

const markerPrefix = '#'

type segment struct {
	text   string
	marker bool
	key    FieldKey
	raw    string // имя после #, как в шаблоне
	known  bool
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// markerKey принимает только ключи словаря. Псевдонимы вроде login или
// last_name допустимы в сопоставлениях, но не в тексте шаблона.
func markerKey(raw string) (FieldKey, bool) {
	for _, k := range Vocabulary {
		if strings.EqualFold(string(k), raw) {
			return k, true
		}
	}
	return "", false
}

func tokenize(text string) []segment {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		c := text[i]
		if c != markerPrefix {
			lit.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == markerPrefix {
			lit.WriteByte(markerPrefix)
			i += 2
			continue
		}

		j := i + 1
		for j < len(text) && isIdentByte(text[j]) {
			j++
		}
		if j == i+1 {
			lit.WriteByte(markerPrefix)
			i++
			continue
		}

		flush()
		raw := text[i+1 : j]
		key, known := markerKey(raw)
		segs = append(segs, segment{marker: true, key: key, raw: raw, known: known})
		i = j
	}
	flush()
	return segs
}

// HasMarkers reports whether text contains at least one vocabulary marker.
func HasMarkers(text string) bool {
	if strings.IndexByte(text, markerPrefix) < 0 {
		return false
	}
	for _, s := range tokenize(text) {
		if s.marker && s.known {
			return true
		}
	}
	return false
}

// Markers returns the keys referenced in text in order of appearance.
func Markers(text string) ([]FieldKey, error) {
	var keys []FieldKey
	for _, s := range tokenize(text) {
		if !s.marker {
			continue
		}
		if !s.known {
			return nil, &Error{Op: "scan markers", Key: s.raw, EmployeeIndex: -1, Err: ErrUnknownFieldKey}
		}
		keys = append(keys, s.key)
	}
	return keys, nil
}

// Substitute replaces every marker in text with the employee's value.
// On an unknown key nothing is returned but the error.
func Substitute(text string, e Employee) (string, error) {
	if strings.IndexByte(text, markerPrefix) < 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, s := range tokenize(text) {
		if !s.marker {
			b.WriteString(s.text)
			continue
		}
		if !s.known {
			return "", &Error{Op: "substitute", Key: s.raw, EmployeeIndex: -1, Err: ErrUnknownFieldKey}
		}
		v, err := Resolve(e, s.key)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
