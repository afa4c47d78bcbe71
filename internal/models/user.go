package models

// FrameIdentity is the viewer context supplied by the social-frame host.
type FrameIdentity struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

type UserSession struct {
	SessionID string        `json:"session_id"`
	Identity  FrameIdentity `json:"identity"`
	CreatedAt int64         `json:"created_at"`
}
