// Package fallback implements model-fallback and contract-check logic:
// case-insensitive pattern matching against a failed invocation's
// stderr/message to decide whether to retry on a fallback model, and the
// patch_with_citations contract's extraction grammar plus optional
// syntactic patch validation. No third-party text/diff library addresses
// unified-diff detection, so this is implemented on regexp/strings; see
// DESIGN.md.
package fallback

import (
	"regexp"
	"strings"

	"github.com/sun-rs/three"
)

// patchBlockPattern matches a fenced ```PATCH ... ``` block and captures its
// body.
var patchBlockPattern = regexp.MustCompile("(?s)```PATCH\\s*\\n(.*?)\\n```")

// diffHunkPattern recognizes at least one unified-diff hunk marker inside a
// patch block body.
var diffHunkPattern = regexp.MustCompile(`(?m)^(---|\+\+\+|@@) `)

// citationsHeaderPattern matches either "CITATIONS:" on its own line or a
// "## CITATIONS" heading.
var citationsHeaderPattern = regexp.MustCompile(`(?m)^(CITATIONS:|##\s*CITATIONS\s*)$`)

// citationEntryPattern matches one "path:line" or "path:line-line" citation
// entry, optionally bulleted.
var citationEntryPattern = regexp.MustCompile(`^[-*]?\s*([^\s:]+):(\d+)(?:-(\d+))?\s*$`)

// CheckPatchWithCitations implements the patch_with_citations contract:
// message must contain a PATCH-fenced unified-diff block and, anywhere
// later, a non-empty CITATIONS section. Returns a *three.Error with the
// precise KindContractMissing{Patch,Citations} on failure.
func CheckPatchWithCitations(message string) *three.Error {
	block := patchBlockPattern.FindStringSubmatch(message)
	if block == nil || !diffHunkPattern.MatchString(block[1]) {
		return three.NewError(three.KindContractMissingPatch, "no fenced PATCH block containing a unified-diff hunk was found")
	}

	citations := extractCitations(message)
	if len(citations) == 0 {
		return three.NewError(three.KindContractMissingCites, "no CITATIONS section with at least one path:line entry was found")
	}
	return nil
}

// extractCitations returns the list of path:line(-line) entries following a
// CITATIONS header, stopping at the first blank line or end of message.
func extractCitations(message string) []string {
	loc := citationsHeaderPattern.FindStringIndex(message)
	if loc == nil {
		return nil
	}
	rest := strings.TrimPrefix(message[loc[1]:], "\n")

	var citations []string
	for _, line := range strings.Split(rest, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if citationEntryPattern.MatchString(trimmed) {
			citations = append(citations, trimmed)
		}
	}
	return citations
}

// ExtractPatchBody returns the fenced PATCH block's body, or "" if absent —
// used by ValidatePatchSyntax to feed the external syntactic check.
func ExtractPatchBody(message string) string {
	block := patchBlockPattern.FindStringSubmatch(message)
	if block == nil {
		return ""
	}
	return block[1]
}
