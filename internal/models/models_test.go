package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsentAction(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name     string
		previous *bool
		granted  bool
		want     string
	}{
		{name: "first grant", previous: nil, granted: true, want: ConsentActionGranted},
		{name: "first refusal", previous: nil, granted: false, want: ConsentActionWithdrawn},
		{name: "withdraw", previous: &yes, granted: false, want: ConsentActionWithdrawn},
		{name: "grant again", previous: &no, granted: true, want: ConsentActionGranted},
		{name: "same grant", previous: &yes, granted: true, want: ConsentActionRenewed},
		{name: "same refusal", previous: &no, granted: false, want: ConsentActionRenewed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConsentAction(tt.previous, tt.granted))
		})
	}
}

func TestProfileUpdate_Apply(t *testing.T) {
	u := &User{FirstName: "Ana", LastName: "Souza", Profession: "fonoaudióloga"}
	first := "Ana"
	org := "Clínica Fala Bem"
	last := ""

	changed := ProfileUpdate{FirstName: &first, Organization: &org, LastName: &last}.Apply(u)

	assert.Equal(t, []string{"last_name", "organization"}, changed)
	assert.Equal(t, "Clínica Fala Bem", u.Organization)
	assert.Equal(t, "", u.LastName)
	assert.Equal(t, "fonoaudióloga", u.Profession)
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ana Souza", (&User{FirstName: "Ana", LastName: "Souza"}).FullName())
	assert.Equal(t, "Ana", (&User{FirstName: "Ana"}).FullName())
	assert.Equal(t, "Souza", (&User{LastName: "Souza"}).FullName())
}

func TestSubscription_IsPremium(t *testing.T) {
	var none *Subscription
	assert.False(t, none.IsPremium())
	assert.True(t, (&Subscription{Status: SubscriptionActive}).IsPremium())
	assert.True(t, (&Subscription{Status: SubscriptionTrialing}).IsPremium())
	assert.False(t, (&Subscription{Status: SubscriptionPastDue}).IsPremium())
	assert.False(t, (&Subscription{Status: SubscriptionCanceled}).IsPremium())
}

func TestDataRetentionPolicy_Cutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
	p := DataRetentionPolicy{RetentionDays: 365}
	assert.Equal(t, time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC), p.Cutoff(now))
}
