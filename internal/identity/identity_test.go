package identity

import (
	"errors"
	"testing"

	"github.com/ashureev/jobassist/internal/domain"
)

func TestNormalizeUserID(t *testing.T) {
	tests := []struct {
		name    string
		channel domain.Channel
		raw     string
		want    string
		wantErr bool
	}{
		{"whatsapp legacy mobile prefix", domain.ChannelWhatsApp, "5215512345678", "525512345678", false},
		{"whatsapp plus sign", domain.ChannelWhatsApp, "+525512345678", "525512345678", false},
		{"whatsapp already canonical", domain.ChannelWhatsApp, "525512345678", "525512345678", false},
		{"messenger keeps 521", domain.ChannelMessenger, "5215512345678", "5215512345678", false},
		{"messenger psid", domain.ChannelMessenger, " 24034829384920 ", "24034829384920", false},
		{"empty", domain.ChannelMessenger, "  ", "", true},
		{"spaces inside", domain.ChannelMessenger, "a b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUserID(tt.channel, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUserID) {
					t.Fatalf("expected ErrInvalidUserID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeUserID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestPhoneFromUserID(t *testing.T) {
	if got := PhoneFromUserID(domain.ChannelWhatsApp, "525512345678"); got != "525512345678" {
		t.Errorf("expected phone from whatsapp id, got %q", got)
	}
	if got := PhoneFromUserID(domain.ChannelMessenger, "525512345678"); got != "" {
		t.Errorf("expected no phone for messenger, got %q", got)
	}
	if got := PhoneFromUserID(domain.ChannelWhatsApp, "tester-1"); got != "" {
		t.Errorf("expected no phone for non-numeric id, got %q", got)
	}
}
