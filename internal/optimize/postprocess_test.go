package optimize

import "testing"

func TestPostProcess_CollapsesHorizontalWhitespace(t *testing.T) {
	got := postProcess("Hello   there,\tfriend.")
	want := "Hello there, friend."
	if got != want {
		t.Errorf("postProcess() = %q, want %q", got, want)
	}
}

func TestPostProcess_PreservesLineBreaksAndTrimsTrailingSpace(t *testing.T) {
	got := postProcess("First line.  \nSecond line.   ")
	want := "First line.\nSecond line."
	if got != want {
		t.Errorf("postProcess() = %q, want %q", got, want)
	}
}

func TestRecapitalizeSentences_CapitalizesAfterPunctuationAndWhitespace(t *testing.T) {
	got := recapitalizeSentences("hello world. how are you? fine! good.")
	want := "Hello world. How are you? Fine! Good."
	if got != want {
		t.Errorf("recapitalizeSentences() = %q, want %q", got, want)
	}
}

func TestRecapitalizeSentences_DoesNotCapitalizeWithoutFollowingWhitespace(t *testing.T) {
	got := recapitalizeSentences("Check file.txt for details.")
	want := "Check file.txt for details."
	if got != want {
		t.Errorf("recapitalizeSentences() = %q, want %q (no capitalization without whitespace after punctuation)", got, want)
	}
}

func TestRecapitalizeSentences_DecimalNumberUnaffected(t *testing.T) {
	got := recapitalizeSentences("The value is 3.5 percent higher.")
	want := "The value is 3.5 percent higher."
	if got != want {
		t.Errorf("recapitalizeSentences() = %q, want %q", got, want)
	}
}

func TestRecapitalizeSentences_PunctuationAtEndOfString(t *testing.T) {
	got := recapitalizeSentences("is this done?")
	want := "Is this done?"
	if got != want {
		t.Errorf("recapitalizeSentences() = %q, want %q", got, want)
	}
}

func TestDirectiveText_Bracketed(t *testing.T) {
	if got := directiveText(DirectiveBracketed, "spanish"); got != "[output_language: spanish]" {
		t.Errorf("directiveText() = %q", got)
	}
}

func TestAppendDirective_JoinsWithBlankLine(t *testing.T) {
	got := appendDirective("body text", "[output_language: spanish]")
	want := "body text\n\n[output_language: spanish]"
	if got != want {
		t.Errorf("appendDirective() = %q, want %q", got, want)
	}
}

func TestAppendDirective_EmptyDirectiveReturnsBodyUnchanged(t *testing.T) {
	if got := appendDirective("body text", ""); got != "body text" {
		t.Errorf("appendDirective() = %q, want unchanged body", got)
	}
}
