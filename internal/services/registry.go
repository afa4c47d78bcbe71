package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
)

// IdentityLookup resolves the frame viewer behind a session.
type IdentityLookup interface {
	Identity(ctx context.Context, sessionID string) (*models.FrameIdentity, error)
}

type PlayerRegistry struct {
	cfg     *config.Config
	lookup  IdentityLookup
	logger  *zap.Logger
	metrics *Metrics

	mu      sync.RWMutex
	players map[string]*Player
}

func NewPlayerRegistry(cfg *config.Config, lookup IdentityLookup, logger *zap.Logger, metrics *Metrics) *PlayerRegistry {
	return &PlayerRegistry{
		cfg:     cfg,
		lookup:  lookup,
		logger:  logger,
		metrics: metrics,
		players: make(map[string]*Player),
	}
}

func (r *PlayerRegistry) Get(sessionID string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[sessionID]
	return p, ok
}

// Resolve returns the session's player, creating it on first use. A failed
// or empty identity lookup falls back to the placeholder viewer.
func (r *PlayerRegistry) Resolve(ctx context.Context, sessionID string) (*Player, error) {
	if p, ok := r.Get(sessionID); ok {
		p.Touch()
		return p, nil
	}

	var identity *models.FrameIdentity
	if r.lookup != nil {
		found, err := r.lookup.Identity(ctx, sessionID)
		if err != nil {
			r.logger.Warn("frame identity lookup failed, using fallback",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		} else {
			identity = found
		}
	}

	player, err := NewPlayer(sessionID, models.NormalizeIdentity(identity), r.cfg, r.logger, r.metrics)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.players[sessionID]; ok {
		r.mu.Unlock()
		player.Close()
		return existing, nil
	}
	r.players[sessionID] = player
	r.mu.Unlock()

	r.metrics.playersChanged(1)
	return player, nil
}

func (r *PlayerRegistry) Remove(sessionID string) {
	r.mu.Lock()
	p, ok := r.players[sessionID]
	delete(r.players, sessionID)
	r.mu.Unlock()

	if ok {
		p.Close()
		r.metrics.playersChanged(-1)
	}
}

func (r *PlayerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func (r *PlayerRegistry) CloseAll() {
	r.mu.Lock()
	players := r.players
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
	r.metrics.playersChanged(-float64(len(players)))
}

// CleanupIdle drops players with no page attached that have not been seen
// for maxIdle and are not mid-spin. It returns how many were removed.
func (r *PlayerRegistry) CleanupIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Player
	for id, p := range r.players {
		if p.Attached() || p.IsSpinning() || p.LastSeen().After(cutoff) {
			continue
		}
		stale = append(stale, p)
		delete(r.players, id)
	}
	r.mu.Unlock()

	for _, p := range stale {
		p.Close()
	}
	if len(stale) > 0 {
		r.metrics.playersChanged(-float64(len(stale)))
		r.logger.Info("idle players removed", zap.Int("count", len(stale)))
	}
	return len(stale)
}
