package services

import "time"

const (
	KeyUserSession   = "session:%s"
	KeyRateLimit     = "ratelimit:%s:%s"
	KeyWebhookEvents = "webhook:events"

	TTLUserSession = 24 * time.Hour

	WebhookEventsKept = 50

	DefaultRateLimitSpins    = 30 // Max 30 spins per minute
	DefaultRateLimitConnects = 10 // Max 10 connect attempts per minute
	DefaultRateLimitFrame    = 60 // Max 60 frame posts per fid per minute
)
