// Package schema validates ingest payloads against the MessageRecord shape.
// Violations are reported as dot-joined field paths ("attachments.0.size"),
// and a payload is rejected if any path is reported.
package schema

import "strconv"

// ValidateRecord checks a decoded JSON value against the MessageRecord
// shape and returns the field paths of every violation. An empty result
// means the payload is well-formed.
func ValidateRecord(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"$"}
	}

	var paths []string

	for _, field := range []string{"id", "receivedAt", "mailbox", "to", "from", "subject"} {
		if !isString(obj[field]) {
			paths = append(paths, field)
		}
	}

	if headers, ok := obj["headers"].(map[string]any); ok {
		for key, hv := range headers {
			if !isString(hv) {
				paths = append(paths, "headers."+key)
			}
		}
	} else {
		paths = append(paths, "headers")
	}

	if raw, ok := obj["raw"].(map[string]any); ok {
		if !isString(raw["key"]) {
			paths = append(paths, "raw.key")
		}
	} else {
		paths = append(paths, "raw")
	}

	if parse, ok := obj["parse"].(map[string]any); ok {
		if !isBool(parse["truncated"]) {
			paths = append(paths, "parse.truncated")
		}
		if !isNumber(parse["maxBytes"]) {
			paths = append(paths, "parse.maxBytes")
		}
	} else {
		paths = append(paths, "parse")
	}

	if body, ok := obj["body"].(map[string]any); ok {
		if !isNullableString(body["text"]) {
			paths = append(paths, "body.text")
		}
		if !isNullableString(body["html"]) {
			paths = append(paths, "body.html")
		}
	} else {
		paths = append(paths, "body")
	}

	atts, ok := obj["attachments"].([]any)
	if !ok {
		return append(paths, "attachments")
	}
	for i, av := range atts {
		base := "attachments." + strconv.Itoa(i)
		att, ok := av.(map[string]any)
		if !ok {
			paths = append(paths, base)
			continue
		}
		for _, field := range []string{"id", "filename", "contentType", "key"} {
			if !isString(att[field]) {
				paths = append(paths, base+"."+field)
			}
		}
		if !isNullableNumber(att["size"]) {
			paths = append(paths, base+".size")
		}
		if !isBool(att["inline"]) {
			paths = append(paths, base+".inline")
		}
		if !isNullableString(att["contentId"]) {
			paths = append(paths, base+".contentId")
		}
	}

	return paths
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isNumber(v any) bool {
	_, ok := v.(float64)
	return ok
}

func isNullableString(v any) bool {
	return v == nil || isString(v)
}

func isNullableNumber(v any) bool {
	return v == nil || isNumber(v)
}
