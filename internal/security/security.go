// Package security holds the injection-marker scanner and path
// validation used across the ingress and task paths.
package security

import (
	"regexp"
	"strings"

	"github.com/PleasePrompto/ductor/internal/derrors"
	"github.com/PleasePrompto/ductor/internal/logging"
)

var log = logging.Component("security")

// injectionPatterns flag common prompt-injection markers: instruction
// overrides, role hijacks, chat-template special tokens, and CLI flag
// smuggling. Matches are logged, never blocked; the agent sees the text
// either way.
var injectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"instruction_override", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?)`)},
	{"instruction_override", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)`)},
	{"instruction_override", regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(instructions?|rules?)`)},
	{"role_hijack", regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+`)},
	{"role_hijack", regexp.MustCompile(`(?i)new\s+instructions?:`)},
	{"fake_system_prompt", regexp.MustCompile(`(?i)system\s*:\s*prompt`)},
	{"special_token", regexp.MustCompile(`(?i)<\|(im_start|im_end|system|endoftext)\|>`)},
	{"llama_markers", regexp.MustCompile(`(?i)\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>`)},
	{"role_markers", regexp.MustCompile(`(?i)(^|\n)\s*(Human|Assistant|System)\s*:`)},
	{"cli_flag_injection", regexp.MustCompile(`(?i)--system-prompt|--append-system-prompt|--permission-mode`)},
	{"file_tag_injection", regexp.MustCompile(`(?i)<file:[^>]+>`)},
}

// foldFullwidth maps fullwidth ASCII letters and angle brackets to their
// ASCII forms so Unicode lookalikes cannot slip past the patterns.
func foldFullwidth(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0xFF21 && r <= 0xFF3A, r >= 0xFF41 && r <= 0xFF5A:
			return r - 0xFEE0
		case r == 0xFF1C:
			return '<'
		case r == 0xFF1E:
			return '>'
		}
		return r
	}, text)
}

// ScanInput returns the names of matched injection markers. Empty slice
// means clean.
func ScanInput(text string) []string {
	folded := foldFullwidth(text)
	var hits []string
	for _, pat := range injectionPatterns {
		if pat.re.MatchString(folded) {
			hits = append(hits, pat.name)
		}
	}
	if len(hits) > 0 {
		log.Warnf("Injection markers detected patterns=%v preview=%q", hits, preview(text))
	}
	return hits
}

func preview(text string) string {
	if len(text) > 80 {
		return text[:80]
	}
	return text
}

// ValidatePathComponent rejects names that would escape their parent
// directory or smuggle control characters.
func ValidatePathComponent(name string) error {
	if name == "" || name == "." || name == ".." {
		return derrors.Security("validate-path", "empty or dot path component")
	}
	if strings.ContainsAny(name, "/\\") {
		return derrors.Security("validate-path", "path separator in component")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return derrors.Security("validate-path", "control character in path")
		}
	}
	return nil
}

// SanitizeID lowercases and hyphenates a free-form title into a stable
// id usable as a path component.
func SanitizeID(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
