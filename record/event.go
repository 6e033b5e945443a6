package record

import "fmt"

// FromEventHash builds an entry from a pre-parsed event, the representation
// used for synthetic and test patients. Two code forms are accepted: the
// single-code shorthand {"code": ..., "code_set": ...} and the full form
// {"codes": {"<system>": [<values>...]}}. All temporal and scalar fields are
// optional.
func FromEventHash(event map[string]any) *Entry {
	e := NewEntry()
	if desc, ok := event["description"].(string); ok {
		e.Description = desc
	}
	if code, ok := event["code"]; ok {
		if system, ok := event["code_set"].(string); ok {
			e.AddCode(asString(code), system)
		}
	}
	if all, ok := event["codes"].(map[string]any); ok {
		for system, values := range all {
			vs, ok := values.([]any)
			if !ok {
				continue
			}
			for _, v := range vs {
				e.AddCode(asString(v), system)
			}
		}
	}
	if t, ok := asEpoch(event["time"]); ok {
		e.SetTime(t)
	}
	if t, ok := asEpoch(event["start_time"]); ok {
		e.SetStartTime(t)
	}
	if t, ok := asEpoch(event["end_time"]); ok {
		e.SetEndTime(t)
	}
	if v, ok := event["value"]; ok {
		unit, _ := event["unit"].(string)
		e.SetValue(asString(v), unit)
	}
	if status, ok := event["status"].(string); ok {
		e.SetStatus(status)
	}
	return e
}

// ParseEventList converts a list of event hashes to entries. Elements that
// are not maps are skipped: list-templating tools interleave placeholder
// strings to simplify trailing-comma handling, and those are not events.
func ParseEventList(events []any) []*Entry {
	entries := make([]*Entry, 0, len(events))
	for _, ev := range events {
		event, ok := ev.(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, FromEventHash(event))
	}
	return entries
}

// asEpoch coerces the numeric representations a decoded JSON or YAML event
// may use for an epoch-seconds field.
func asEpoch(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	}
	return 0, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
