package sanitize

import (
	"regexp"
	"strings"

	"github.com/johns/daylog/internal/config"
)

// Secret-like patterns. Broad but high-signal; upstream capture-time
// redaction is the primary layer, this is defense in depth before anything
// reaches a rendered document or a remote prompt.
var (
	openaiKeyRE   = regexp.MustCompile(`\bsk-[A-Za-z0-9]{10,}\b`)
	githubTokenRE = regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|github_pat)_[A-Za-z0-9_]{10,}\b`)
	slackTokenRE  = regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)
	awsKeyRE      = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	jwtRE         = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)

	privateKeyBlockRE = regexp.MustCompile(`-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z0-9 ]*PRIVATE KEY-----`)

	// Generic key=value secrets, only when the key name is high-signal.
	secretKVRE = regexp.MustCompile(`(?i)\b(api[-_]?key|access[-_]?token|refresh[-_]?token|client[-_]?secret|password|passcode|otp|verification[-_ ]?code)\b\s*[:=]\s*[^\s'"` + "`" + `]{6,}`)

	emailRE         = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	cardCandidateRE = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	authHintRE      = regexp.MustCompile(`(?i)\b(password|passcode|otp|one[- ]time|2fa|verification|secret|cvv|security code|card number)\b`)
)

// Text masks secrets and PII in a single string according to the redaction
// toggles. Safe to call on already-masked text.
func Text(s string, cfg config.RedactConfig) string {
	if s == "" {
		return s
	}
	out := s

	if cfg.Secrets {
		out = privateKeyBlockRE.ReplaceAllString(out, "[REDACTED_PRIVATE_KEY]")
		out = openaiKeyRE.ReplaceAllString(out, "[REDACTED_API_KEY]")
		out = githubTokenRE.ReplaceAllString(out, "[REDACTED_TOKEN]")
		out = slackTokenRE.ReplaceAllString(out, "[REDACTED_TOKEN]")
		out = awsKeyRE.ReplaceAllString(out, "[REDACTED_TOKEN]")
		out = jwtRE.ReplaceAllString(out, "[REDACTED_TOKEN]")
		out = secretKVRE.ReplaceAllStringFunc(out, func(m string) string {
			name := secretKVRE.FindStringSubmatch(m)[1]
			return name + "=[REDACTED_SECRET]"
		})
	}

	if cfg.Email {
		out = emailRE.ReplaceAllString(out, "[REDACTED_EMAIL]")
	}

	if cfg.CreditCard {
		out = cardCandidateRE.ReplaceAllStringFunc(out, func(m string) string {
			if luhnOK(m) {
				return "[REDACTED_CARD]"
			}
			return m
		})
	}

	if cfg.AuthNearby {
		out = maskAuthNearby(out)
	}

	return out
}

// Document masks an entire rendered document. Kept separate so it can grow
// line/section-aware filtering without touching Text callers.
func Document(md string, cfg config.RedactConfig) string {
	return Text(md, cfg)
}

// maskAuthNearby replaces lines that mention authentication hints, plus their
// immediate neighbors, since codes and passwords tend to sit next to labels.
func maskAuthNearby(s string) string {
	lines := strings.Split(s, "\n")
	hinted := make([]bool, len(lines))
	for i, line := range lines {
		hinted[i] = authHintRE.MatchString(line)
	}
	out := make([]string, len(lines))
	for i := range lines {
		switch {
		case hinted[i]:
			out[i] = "[REDACTED_AUTH]"
		case i > 0 && hinted[i-1], i+1 < len(lines) && hinted[i+1]:
			out[i] = "[REDACTED_AUTH]"
		default:
			out[i] = lines[i]
		}
	}
	return strings.Join(out, "\n")
}

func luhnOK(number string) bool {
	var digits []int
	for _, c := range number {
		if c >= '0' && c <= '9' {
			digits = append(digits, int(c-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	checksum := 0
	parity := len(digits) % 2
	for i, d := range digits {
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
	}
	return checksum%10 == 0
}
