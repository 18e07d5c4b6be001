// Package rules implements the violation classifier: a pure function from
// message content and a wordlist snapshot to a verdict. No I/O, no side
// effects, safe to call concurrently with cache reloads because it only
// ever reads a single immutable snapshot reference.
package rules

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/vigilbot/vigil/moderation/event"
	"github.com/vigilbot/vigil/moderation/keyword"
	"github.com/vigilbot/vigil/moderation/wordlist"
)

type Violation int

const (
	ViolationNone Violation = iota
	ViolationForbiddenLink
	ViolationForbiddenKeyword
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationForbiddenLink:
		return "forbidden-link"
	case ViolationForbiddenKeyword:
		return "forbidden-keyword"
	default:
		return "<unknown>"
	}
}

// Verdict is the transient result of classifying one message. Produced per
// message, consumed immediately, never persisted.
type Verdict struct {
	Violation Violation
	// Matched is the keyword entry term, link target, or mention that
	// triggered the verdict.
	Matched string
}

// LinkPolicy configures which link targets are tolerated. Read-only data;
// passing it into Classify keeps the classifier itself free of state.
type LinkPolicy struct {
	// AllowedDomains are lowercase hostnames (and their subdomains) that do
	// not count as forbidden links.
	AllowedDomains map[string]bool
}

func (p LinkPolicy) allows(target string) bool {
	host := strings.ToLower(domainOf(target))
	if host == "" {
		return false
	}
	for d := range p.AllowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// matches http(s) URLs, t.me deep links, and @mentions, mirroring the
// classic anti-advertising pattern
var linkRegex = regexp.MustCompile(`(?i)(https?://|t\.me/|@)[^\s]+`)

var linkEntityTypes = []string{"url", "text_link", "mention"}

// Classify inspects one message against the given snapshot. Checks are
// ordered: link entities first, then every snapshot entry in cache
// iteration order. First match wins; there is no severity ranking across
// entries. That is a deliberate simplification.
func Classify(text string, entities []event.Entity, snap *wordlist.Snapshot, policy LinkPolicy) Verdict {
	if v := classifyLinks(text, entities, policy); v.Violation != ViolationNone {
		return v
	}
	return classifyKeywords(text, snap)
}

func classifyLinks(text string, entities []event.Entity, policy LinkPolicy) Verdict {
	for _, ent := range entities {
		if !slices.Contains(linkEntityTypes, ent.Type) {
			continue
		}
		target := ent.URL
		if target == "" {
			target = entitySpan(text, ent)
		}
		if ent.Type == "mention" {
			// mentions are treated as channel advertising; no allow-list
			return Verdict{Violation: ViolationForbiddenLink, Matched: target}
		}
		if target == "" {
			// malformed offsets from the transport; don't condemn a target
			// we could not extract, the text fallback below still applies
			continue
		}
		if !policy.allows(target) {
			return Verdict{Violation: ViolationForbiddenLink, Matched: target}
		}
	}
	// fallback for transports that don't annotate entities
	if m := linkRegex.FindString(text); m != "" {
		if strings.HasPrefix(m, "@") || !policy.allows(m) {
			return Verdict{Violation: ViolationForbiddenLink, Matched: m}
		}
	}
	return Verdict{}
}

func classifyKeywords(text string, snap *wordlist.Snapshot) Verdict {
	if snap == nil || len(snap.Entries) == 0 {
		return Verdict{}
	}
	lower := strings.ToLower(text)
	tokens := keyword.TokenizeText(text)
	for _, e := range snap.Entries {
		if strings.Contains(lower, e.Lowered) || slices.Contains(tokens, e.Lowered) {
			return Verdict{Violation: ViolationForbiddenKeyword, Matched: e.Term}
		}
	}
	return Verdict{}
}

// entitySpan extracts the text covered by an entity. Offsets and lengths
// count UTF-16 code units (the transport's wire convention), so characters
// outside the BMP occupy two units. Returns "" for malformed offsets.
func entitySpan(text string, ent event.Entity) string {
	u := utf16.Encode([]rune(text))
	if ent.Offset < 0 || ent.Length <= 0 || ent.Offset+ent.Length > len(u) {
		return ""
	}
	return string(utf16.Decode(u[ent.Offset : ent.Offset+ent.Length]))
}

// domainOf pulls a bare hostname out of a URL-ish string.
func domainOf(raw string) string {
	s := strings.TrimPrefix(raw, "@")
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}
