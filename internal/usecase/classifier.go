package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorClass is the closed set of things a failed provider call can mean.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransientThrottled
	ClassTransientOther
	ClassPermanentDuplicate
	ClassPermanentBlocked
	ClassPermanentNotFound
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransientThrottled:
		return "transient-throttled"
	case ClassTransientOther:
		return "transient-other"
	case ClassPermanentDuplicate:
		return "permanent-duplicate"
	case ClassPermanentBlocked:
		return "permanent-blocked"
	case ClassPermanentNotFound:
		return "permanent-not-found"
	default:
		return "unknown"
	}
}

// Classification tags a raw provider error. WaitHint is only set for
// transient-throttled and only when the provider supplied one.
type Classification struct {
	Class    ErrorClass
	WaitHint time.Duration
	Raw      string
}

// ErrorClassifier maps raw Telegram error strings to error classes.
//
// This table is the single place to update when the provider changes its
// error text; call sites must never match on message substrings themselves.
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier { return &ErrorClassifier{} }

// patterns are matched in order against the lowercased error text; first hit
// wins. Keep the throttle entries on top: a flood error sometimes carries
// other keywords too.
var patterns = []struct {
	substr string
	class  ErrorClass
}{
	{"too many requests", ClassTransientThrottled},
	{"retry after", ClassTransientThrottled},
	{"flood_wait", ClassTransientThrottled},
	{"flood control", ClassTransientThrottled},

	{"user_already_participant", ClassPermanentDuplicate},
	{"already a participant", ClassPermanentDuplicate},
	{"already a member", ClassPermanentDuplicate},

	{"bot was blocked by the user", ClassPermanentBlocked},
	{"user_privacy_restricted", ClassPermanentBlocked},
	{"user_not_mutual_contact", ClassPermanentBlocked},
	{"can't initiate conversation", ClassPermanentBlocked},
	{"chat_write_forbidden", ClassPermanentBlocked},
	{"user_channels_too_much", ClassPermanentBlocked},

	{"user is deactivated", ClassPermanentNotFound},
	{"user_deactivated", ClassPermanentNotFound},
	{"user not found", ClassPermanentNotFound},
	{"chat not found", ClassPermanentNotFound},
	{"peer_id_invalid", ClassPermanentNotFound},

	{"timeout", ClassTransientOther},
	{"connection reset", ClassTransientOther},
	{"bad gateway", ClassTransientOther},
	{"gateway timeout", ClassTransientOther},
	{"service unavailable", ClassTransientOther},
	{"internal server error", ClassTransientOther},
}

var (
	retryAfterRe = regexp.MustCompile(`retry after (\d+)`)
	floodWaitRe  = regexp.MustCompile(`flood_wait_(\d+)`)
)

// Classify tags err. Unmatched errors come back as ClassUnknown; the retry
// executor treats those conservatively as retryable with capped attempts.
func (c *ErrorClassifier) Classify(err error) Classification {
	if err == nil {
		return Classification{Class: ClassUnknown}
	}
	raw := err.Error()
	msg := strings.ToLower(raw)

	for _, p := range patterns {
		if strings.Contains(msg, p.substr) {
			cls := Classification{Class: p.class, Raw: raw}
			if p.class == ClassTransientThrottled {
				cls.WaitHint = extractWaitHint(msg)
			}
			return cls
		}
	}
	return Classification{Class: ClassUnknown, Raw: raw}
}

func extractWaitHint(msg string) time.Duration {
	if m := retryAfterRe.FindStringSubmatch(msg); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if m := floodWaitRe.FindStringSubmatch(msg); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
