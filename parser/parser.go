// Package parser implements the four output-parser variants:
// json_object, json_stream (with pick=first|last and an optional codex
// fallback), regex, and text. Each variant is a plain function keyed off
// catalog.ParserKind — a closed tagged union, not a dispatch hierarchy.
// Extraction is path-addressed and backend-agnostic, built on
// github.com/tidwall/gjson for dotted-path JSON access rather than
// per-backend hand-rolled Go structs; see DESIGN.md.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/catalog"
)

// Parsed is the normalized extraction result handed to the invocation
// engine before it becomes a three.Result.
type Parsed struct {
	Message   string
	SessionID string // empty => stateless
}

// Parse dispatches stdout through the variant named by spec.Kind.
func Parse(spec catalog.ParserSpec, stdout string) (Parsed, error) {
	switch spec.Kind {
	case catalog.ParserJSONObject:
		return parseJSONObject(spec, stdout)
	case catalog.ParserJSONStream:
		return parseJSONStream(spec, stdout)
	case catalog.ParserRegex:
		return parseRegex(spec, stdout)
	case catalog.ParserText:
		return Parsed{Message: strings.TrimSpace(stdout)}, nil
	default:
		return Parsed{}, three.NewError(three.KindParseBadFormat, "unknown parser kind %q", spec.Kind)
	}
}

// parseJSONObject treats stdout as one JSON document.
func parseJSONObject(spec catalog.ParserSpec, stdout string) (Parsed, error) {
	trimmed := strings.TrimSpace(stdout)
	if !gjson.Valid(trimmed) {
		return Parsed{}, three.NewError(three.KindParseBadFormat, "stdout is not valid JSON")
	}

	message := gjson.Get(trimmed, spec.MessagePath).String()
	if message == "" {
		return Parsed{}, three.NewError(three.KindParseEmptyMessage, "message_path %q produced an empty result", spec.MessagePath)
	}

	var sessionID string
	if spec.SessionIDPath != "" {
		sessionID = gjson.Get(trimmed, spec.SessionIDPath).String()
	}
	return Parsed{Message: message, SessionID: sessionID}, nil
}

// parseJSONStream treats stdout as newline-delimited JSON objects:
// session_id_path is resolved on the first object that contains it;
// message_path is evaluated on every object, keeping either the first or
// last non-empty resolution per spec.Pick. Lines that aren't valid JSON are
// skipped, not fatal.
func parseJSONStream(spec catalog.ParserSpec, stdout string) (Parsed, error) {
	var sessionID string
	var firstMessage, lastMessage string
	var sawMessage bool

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}

		if sessionID == "" && spec.SessionIDPath != "" {
			if id := gjson.Get(line, spec.SessionIDPath).String(); id != "" {
				sessionID = id
			}
		}

		if msg := gjson.Get(line, spec.MessagePath).String(); msg != "" {
			if !sawMessage {
				firstMessage = msg
				sawMessage = true
			}
			lastMessage = msg
		}
	}

	message := lastMessage
	if spec.Pick == catalog.PickFirst {
		message = firstMessage
	}

	if message == "" && spec.Fallback == "codex" {
		message = codexFallbackMessage(stdout, spec.Pick)
	}

	if message == "" {
		return Parsed{}, three.NewError(three.KindParseEmptyMessage, "message_path %q produced no non-empty result", spec.MessagePath)
	}
	return Parsed{Message: message, SessionID: sessionID}, nil
}

// codexFallbackMessage re-scans stdout for item.completed events whose
// item.type is catalog.CodexAgentMessageEventType, used when the adapter's
// regular message_path (item.text) comes back empty. It reads the text from
// the same item.text field, so it finds no text that the primary pass
// missed; text nested anywhere else in an event is not searched.
func codexFallbackMessage(stdout string, pick catalog.Pick) string {
	var first, last string
	var saw bool

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if gjson.Get(line, "type").String() != "item.completed" {
			continue
		}
		if gjson.Get(line, "item.type").String() != catalog.CodexAgentMessageEventType {
			continue
		}
		text := gjson.Get(line, "item.text").String()
		if text == "" {
			continue
		}
		if !saw {
			first = text
			saw = true
		}
		last = text
	}
	if pick == catalog.PickFirst {
		return first
	}
	return last
}

// parseRegex runs one regex against the whole of stdout: session_id_pattern
// is the regex itself, whose first match's group 1 is
// the session id, and message_capture_group selects which of that same
// match's groups is the message text.
func parseRegex(spec catalog.ParserSpec, stdout string) (Parsed, error) {
	re, err := regexp.Compile(spec.SessionIDPattern)
	if err != nil {
		return Parsed{}, three.NewError(three.KindParseBadFormat, "invalid regex %q: %v", spec.SessionIDPattern, err)
	}
	match := re.FindStringSubmatch(stdout)
	if match == nil {
		return Parsed{}, three.NewError(three.KindParseEmptyMessage, "regex %q did not match stdout", spec.SessionIDPattern)
	}

	var sessionID string
	if len(match) > 1 {
		sessionID = match[1]
	}

	if spec.MessageCaptureGroup <= 0 || spec.MessageCaptureGroup >= len(match) {
		return Parsed{}, three.NewError(three.KindParseBadFormat,
			"message_capture_group %d out of range for %d captured groups", spec.MessageCaptureGroup, len(match)-1)
	}
	message := match[spec.MessageCaptureGroup]
	if message == "" {
		return Parsed{}, three.NewError(three.KindParseEmptyMessage, "capture group %d matched empty text", spec.MessageCaptureGroup)
	}

	return Parsed{Message: message, SessionID: sessionID}, nil
}
