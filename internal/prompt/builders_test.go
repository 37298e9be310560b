package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"parley/internal/domain"
)

func TestBuildAugmented_ShouldContainInstructionsCatalogAndQuestion(t *testing.T) {
	got := BuildAugmented("Follow the rules.", "- getSegment: counts users", "how many male users?")

	for _, want := range []string{
		"Follow the rules.",
		"[Available Tools]",
		"- getSegment: counts users",
		"[End Tools]",
		"how many male users?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("augmented prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildAugmented_ShouldEndWithUserText(t *testing.T) {
	got := BuildAugmented("i", "c", "the question")
	if !strings.HasSuffix(got, "the question") {
		t.Errorf("user text must come last:\n%s", got)
	}
}

func TestBuildCorrection_ShouldEmbedFailingCallDetails(t *testing.T) {
	inv := domain.ToolInvocation{
		ToolName:  "getSegment",
		Arguments: json.RawMessage(`{"filter":"gender IN male"}`),
	}
	got := BuildCorrection("Fix it or give up.", "- getSegment: counts users", "how many male users?", inv, "unknown operator IN")

	for _, want := range []string{
		"Fix it or give up.",
		"[Original Question]",
		"how many male users?",
		"tool: getSegment",
		`arguments: {"filter":"gender IN male"}`,
		"error: unknown operator IN",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("correction prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildAnswer_ShouldEmbedResultsAndQuestion(t *testing.T) {
	got := BuildAnswer("Answer naturally.", "how many male users?", "Tool getSegment: 42 users matched")

	for _, want := range []string{
		"Answer naturally.",
		"[Tool Results]",
		"Tool getSegment: 42 users matched",
		"[Original Question]",
		"how many male users?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("answer prompt missing %q:\n%s", want, got)
		}
	}
}

func TestDegradedAnswer_ShouldPrefixInstructionsToResults(t *testing.T) {
	got := DegradedAnswer("Raw results below:", "Tool getSegment: 42 users matched")

	if !strings.HasPrefix(got, "Raw results below:") {
		t.Errorf("instructions must lead:\n%s", got)
	}
	if !strings.Contains(got, "Tool getSegment: 42 users matched") {
		t.Errorf("results must be embedded:\n%s", got)
	}
}
