package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const PlaceholderAvatar = "/placeholder.svg?height=40&width=40"

func GenerateSpinID() string {
	return fmt.Sprintf("spin_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateSessionID() string {
	return uuid.New().String()
}

// FallbackIdentity is used whenever the frame host supplies no viewer.
func FallbackIdentity() FrameIdentity {
	return FrameIdentity{
		FID:         12345,
		Username:    "demo_user",
		DisplayName: "Demo User",
		PfpURL:      PlaceholderAvatar,
	}
}

// NormalizeIdentity fills missing profile fields. A nil or fid-less identity
// yields the fallback.
func NormalizeIdentity(id *FrameIdentity) FrameIdentity {
	if id == nil || id.FID <= 0 {
		return FallbackIdentity()
	}

	out := *id
	if out.Username == "" {
		out.Username = fmt.Sprintf("user-%d", out.FID)
	}
	if out.DisplayName == "" {
		if id.Username != "" {
			out.DisplayName = id.Username
		} else {
			out.DisplayName = fmt.Sprintf("User %d", out.FID)
		}
	}
	if out.PfpURL == "" {
		out.PfpURL = PlaceholderAvatar
	}
	return out
}
