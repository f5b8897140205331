package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKOLProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile KOLProfile
		wantErr bool
	}{
		{
			name: "valid profile",
			profile: KOLProfile{
				ID:                 "kol-1",
				Username:           "alice",
				SocialHandles:      map[string]string{PlatformTwitter: "alice_trades"},
				VerificationStatus: StatusVerified,
				StakeAmount:        5000,
			},
		},
		{
			name: "missing twitter handle",
			profile: KOLProfile{
				ID:            "kol-1",
				Username:      "alice",
				SocialHandles: map[string]string{PlatformMedium: "alice"},
			},
			wantErr: true,
		},
		{
			name: "missing id",
			profile: KOLProfile{
				Username:      "alice",
				SocialHandles: map[string]string{PlatformTwitter: "alice"},
			},
			wantErr: true,
		},
		{
			name: "unknown status",
			profile: KOLProfile{
				ID:                 "kol-1",
				Username:           "alice",
				SocialHandles:      map[string]string{PlatformTwitter: "alice"},
				VerificationStatus: "approved",
			},
			wantErr: true,
		},
		{
			name: "negative stake",
			profile: KOLProfile{
				ID:            "kol-1",
				Username:      "alice",
				SocialHandles: map[string]string{PlatformTwitter: "alice"},
				StakeAmount:   -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerificationStatus_Valid(t *testing.T) {
	assert.True(t, StatusVerified.Valid())
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusUnverified.Valid())
	assert.False(t, VerificationStatus("").Valid())
}
