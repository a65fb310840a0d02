package audit

import "regexp"

const mask = "********"

var (
	xmlSecret  = regexp.MustCompile(`(<(?:[\w.-]+:)?password(?:\s[^>]*)?>)[^<]*(</(?:[\w.-]+:)?password>)`)
	jsonSecret = regexp.MustCompile(`("password"\s*:\s*)"(?:[^"\\]|\\.)*"`)
)

// Redact masks credential values in serialised XML or JSON payloads.
func Redact(payload string) string {
	if payload == "" {
		return payload
	}
	payload = xmlSecret.ReplaceAllString(payload, "${1}"+mask+"${2}")
	return jsonSecret.ReplaceAllString(payload, `${1}"`+mask+`"`)
}
