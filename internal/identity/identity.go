// Package identity normalizes channel-scoped user identifiers.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/jobassist/internal/domain"
)

// ErrInvalidUserID is returned for identifiers that cannot key a session.
var ErrInvalidUserID = errors.New("invalid user id")

var (
	// Messenger page-scoped ids and WhatsApp numbers are digit strings; test
	// and staging traffic uses short alphanumeric ids.
	userIDPattern  = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
	waPhonePattern = regexp.MustCompile(`^\d{8,15}$`)
)

// mexicanMobilePrefix is the legacy "521" country+mobile prefix WhatsApp
// still reports for some Mexican numbers. Replies must go to "52".
const mexicanMobilePrefix = "521"

// NormalizeUserID returns the canonical session key for a sender id on the
// given channel.
func NormalizeUserID(channel domain.Channel, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if channel == domain.ChannelWhatsApp {
		id = strings.TrimPrefix(id, "+")
		if strings.HasPrefix(id, mexicanMobilePrefix) {
			id = "52" + id[len(mexicanMobilePrefix):]
		}
	}
	if !userIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	return id, nil
}

// PhoneFromUserID returns the contact phone implied by a WhatsApp sender id,
// or "" when the channel does not expose one.
func PhoneFromUserID(channel domain.Channel, userID string) string {
	if channel != domain.ChannelWhatsApp || !waPhonePattern.MatchString(userID) {
		return ""
	}
	return userID
}
