package models

import "encoding/json"

type FrameManifest struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	HomeURL     string `json:"homeUrl"`
	ImageURL    string `json:"imageUrl"`
}

type FrameButton struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Target string `json:"target"`
}

type FrameResponse struct {
	Image       string        `json:"image"`
	Buttons     []FrameButton `json:"buttons"`
	PostURL     string        `json:"post_url"`
	AspectRatio string        `json:"aspect_ratio"`
}

type CastID struct {
	FID  int64  `json:"fid"`
	Hash string `json:"hash"`
}

type UntrustedData struct {
	FID         int64   `json:"fid"`
	URL         string  `json:"url"`
	MessageHash string  `json:"messageHash"`
	Timestamp   int64   `json:"timestamp"`
	Network     int     `json:"network"`
	ButtonIndex int     `json:"buttonIndex"`
	InputText   string  `json:"inputText,omitempty"`
	State       string  `json:"state,omitempty"`
	CastID      *CastID `json:"castId,omitempty"`
}

type TrustedData struct {
	MessageBytes string `json:"messageBytes"`
	FID          int64  `json:"fid,omitempty"`
	MessageHash  string `json:"messageHash,omitempty"`
	Network      int    `json:"network,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// FrameActionRequest is the body a feed client posts on a frame button press.
type FrameActionRequest struct {
	UntrustedData *UntrustedData `json:"untrustedData"`
	TrustedData   *TrustedData   `json:"trustedData"`
}

type WebhookEventType string

const (
	WebhookFrameAdded          WebhookEventType = "frame.added"
	WebhookFrameRemoved        WebhookEventType = "frame.removed"
	WebhookNotificationCreated WebhookEventType = "notification.created"
)

type WebhookEvent struct {
	Type       WebhookEventType `json:"type"`
	Data       json.RawMessage  `json:"data,omitempty"`
	ReceivedAt int64            `json:"received_at,omitempty"`
}

func (e WebhookEvent) Known() bool {
	switch e.Type {
	case WebhookFrameAdded, WebhookFrameRemoved, WebhookNotificationCreated:
		return true
	}
	return false
}
