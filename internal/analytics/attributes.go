package analytics

import (
	"fmt"
	"strconv"
)

// MergedAttr resolves an attribute key across the two bags with contact-level
// precedence: when both define the key, the contact value wins. The second
// return reports presence; nil values and empty strings count as absent.
func MergedAttr(contactAttrs, convAttrs map[string]interface{}, key string) (string, bool) {
	if s, ok := attrString(contactAttrs, key); ok {
		return s, true
	}
	return attrString(convAttrs, key)
}

// MergedRaw resolves an attribute key with the same precedence but without
// stringifying, for values that feed numeric parsing.
func MergedRaw(contactAttrs, convAttrs map[string]interface{}, key string) interface{} {
	if contactAttrs != nil {
		if v, ok := contactAttrs[key]; ok && v != nil {
			return v
		}
	}
	if convAttrs != nil {
		if v, ok := convAttrs[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// attrString pulls a single bag entry as a display string.
func attrString(attrs map[string]interface{}, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs[key]
	if !ok || v == nil {
		return "", false
	}

	switch s := v.(type) {
	case string:
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return fmt.Sprint(s), true
	}
}
