package moderation

import (
	"fmt"

	"github.com/vigilbot/vigil/moderation/event"
	"github.com/vigilbot/vigil/moderation/rules"
)

func displayName(u event.UserRef) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("User_%d", u.ID)
}

func violationReason(v rules.Verdict) string {
	switch v.Violation {
	case rules.ViolationForbiddenLink:
		return "Advertising and links are not allowed."
	case rules.ViolationForbiddenKeyword:
		return "Use of forbidden language."
	default:
		return "Rule violation."
	}
}

func warnNotice(u event.UserRef, v rules.Verdict, count, threshold int) string {
	return fmt.Sprintf("⚠️ %s, that's a violation!\nReason: %s\nWarning %d/%d.",
		displayName(u), violationReason(v), count, threshold)
}

func banNotice(u event.UserRef, v rules.Verdict, threshold int) string {
	return fmt.Sprintf("🚫 %s has been banned.\nReason: %s (%d/%d).",
		displayName(u), violationReason(v), threshold, threshold)
}

func welcomeNotice(u event.UserRef) string {
	return fmt.Sprintf("🎉 Welcome, %s!\n\nPlease read the community rules before joining the conversation.\n\nEnjoy your stay!",
		displayName(u))
}
