package session

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const listSep = ","

// normalize converts a raw UI value into the stored answer string for the
// given question type. An empty result means "no answer".
func normalize(t QuestionType, raw any) string {
	if raw == nil {
		return ""
	}
	switch t {
	case TypeMultiSelect:
		if items, ok := toStrings(raw); ok {
			return joinNonEmpty(items)
		}
	case TypeInteger:
		n, ok := toInt(raw)
		if !ok {
			return ""
		}
		return strconv.Itoa(n)
	case TypeMatching:
		if pairs, ok := toPairs(raw); ok {
			out := make([]string, 0, len(pairs))
			for _, p := range pairs {
				l, r := strings.TrimSpace(p.Left), strings.TrimSpace(p.Right)
				if l == "" || r == "" {
					continue
				}
				out = append(out, l+":"+r)
			}
			return strings.Join(out, listSep)
		}
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return strconv.FormatBool(b)
		}
	}
	return passthrough(raw)
}

func passthrough(raw any) string {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return ""
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func joinNonEmpty(items []string) string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, listSep)
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toPairs(raw any) ([]Pair, bool) {
	switch v := raw.(type) {
	case []Pair:
		return v, true
	case [][2]string:
		out := make([]Pair, 0, len(v))
		for _, p := range v {
			out = append(out, Pair{Left: p[0], Right: p[1]})
		}
		return out, true
	case []any:
		// decoded JSON: [{"left":..,"right":..}] or [["l","r"]]
		out := make([]Pair, 0, len(v))
		for _, e := range v {
			if p, ok := pairOf(e); ok {
				out = append(out, p)
			}
		}
		return out, true
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Pair, 0, len(v))
		for _, k := range keys {
			if r, ok := v[k].(string); ok {
				out = append(out, Pair{Left: k, Right: r})
			}
		}
		return out, true
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Pair, 0, len(v))
		for _, k := range keys {
			out = append(out, Pair{Left: k, Right: v[k]})
		}
		return out, true
	default:
		return nil, false
	}
}

func pairOf(e any) (Pair, bool) {
	switch p := e.(type) {
	case Pair:
		return p, true
	case map[string]any:
		l, lok := p["left"].(string)
		r, rok := p["right"].(string)
		return Pair{Left: l, Right: r}, lok && rok
	case []any:
		if len(p) != 2 {
			return Pair{}, false
		}
		l, lok := p[0].(string)
		r, rok := p[1].(string)
		return Pair{Left: l, Right: r}, lok && rok
	case []string:
		if len(p) != 2 {
			return Pair{}, false
		}
		return Pair{Left: p[0], Right: p[1]}, true
	default:
		return Pair{}, false
	}
}
