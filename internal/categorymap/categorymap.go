// Package categorymap translates between the ML service's numeric class ids
// and canonical category names, and folds legacy aliases into canonical names.
package categorymap

import (
	"strconv"
	"strings"
)

// OtherID is the catch-all class.
const OtherID = 0

var idToName = map[int]string{
	0:  "Інше",
	1:  "Продукти",
	2:  "Кафе",
	3:  "Онлайн покупки",
	4:  "Електроніка",
	5:  "Канцтовари/Послуги",
	6:  "Супермаркет",
	7:  "Одяг",
	8:  "Платежі/Термінали",
	9:  "Переказ",
	10: "Транспорт",
	11: "Мобільний",
	12: "Тварини",
	13: "Аптека/Косметика",
	14: "Податки/Платежі державі",
	15: "Кондитерські",
	16: "Різне",
}

var nameToID = func() map[string]int {
	m := make(map[string]int, len(idToName))
	for id, name := range idToName {
		m[name] = id
	}
	return m
}()

// aliases map legacy or foreign-language names onto canonical ones.
// Targets must not themselves be alias keys.
var aliases = map[string]string{
	"Їжа":         "Продукти",
	"Супермаркет": "Продукти",
	"Food":        "Продукти",
	"Groceries":   "Продукти",
}

// NameForID returns the canonical name for a class id.
func NameForID(id int) (string, bool) {
	name, ok := idToName[id]
	return name, ok
}

// IDForName returns the class id for a canonical name. The name is trimmed
// but not alias-normalized. Id 0 is a valid result.
func IDForName(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	id, ok := nameToID[name]
	return id, ok
}

// Normalize trims name and replaces a known alias with its canonical form.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// IsNumericID reports whether s (trimmed) consists only of ASCII digits.
func IsNumericID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve turns a raw category value into a category name. Digit-only
// values are looked up as class ids; unknown ids and everything else are
// returned trimmed and unchanged.
func Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if !IsNumericID(raw) {
		return raw
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	if name, ok := NameForID(id); ok {
		return name
	}
	return raw
}

// CorrectionID resolves a category name to the id sent with ML corrections:
// the taxonomy id when the name is known, the integer itself when the name is
// digit-only, nil otherwise.
func CorrectionID(name string) *int {
	if id, ok := IDForName(name); ok {
		return &id
	}
	if IsNumericID(name) {
		if id, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
			return &id
		}
	}
	return nil
}

// IDs returns every known class id in ascending order.
func IDs() []int {
	ids := make([]int, 0, len(idToName))
	for id := 0; id < len(idToName); id++ {
		if _, ok := idToName[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
