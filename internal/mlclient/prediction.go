package mlclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"fintrack/internal/categorymap"
)

// PredictionKind tells which form the service answered in.
type PredictionKind int

const (
	// PredictionAbsent means the response carried no usable category.
	PredictionAbsent PredictionKind = iota
	// PredictionName carries a human-readable category name.
	PredictionName
	// PredictionID carries a numeric class id.
	PredictionID
)

// Prediction is the decoded categorize response. The service may answer
// with "category", "category_name" or "category_id"; the first usable key in
// that order wins. Digit-only strings are treated as class ids.
type Prediction struct {
	Kind PredictionKind
	Name string
	ID   int
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Prediction{}
	for _, key := range []string{"category", "category_name", "category_id"} {
		if v, ok := raw[key]; ok {
			if pred, ok := decodeValue(v); ok {
				*p = pred
				return nil
			}
		}
	}
	return nil
}

func decodeValue(v json.RawMessage) (Prediction, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return Prediction{}, false
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return Prediction{}, false
		}
		if categorymap.IsNumericID(s) {
			if id, err := strconv.Atoi(s); err == nil {
				return Prediction{Kind: PredictionID, ID: id}, true
			}
		}
		return Prediction{Kind: PredictionName, Name: s}, true
	}

	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if id, err := n.Int64(); err == nil && id >= 0 {
			return Prediction{Kind: PredictionID, ID: int(id)}, true
		}
	}
	return Prediction{}, false
}

// CategoryName returns the category as a name. Known ids are translated
// through the taxonomy; unknown ids come back as their decimal string.
// It returns "" for an absent prediction.
func (p Prediction) CategoryName() string {
	switch p.Kind {
	case PredictionName:
		return categorymap.Resolve(p.Name)
	case PredictionID:
		if name, ok := categorymap.NameForID(p.ID); ok {
			return name
		}
		return strconv.Itoa(p.ID)
	default:
		return ""
	}
}

// MarshalJSON renders the prediction the way the service would have sent it.
func (p Prediction) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PredictionName:
		return json.Marshal(map[string]string{"category": p.Name})
	case PredictionID:
		return json.Marshal(map[string]int{"category_id": p.ID})
	default:
		return []byte("{}"), nil
	}
}
