package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
)

// Player is one viewer: frame identity, wallet session, spin engine and the
// in-memory score. Nothing here outlives the process.
type Player struct {
	ID       string
	Identity models.FrameIdentity

	cfg     *config.Config
	logger  *zap.Logger
	metrics *Metrics
	engine  *SpinEngine

	mu       sync.Mutex
	session  *WalletSession
	notifier Notifier
	score    int64
	spins    int64

	lastSeen atomic.Int64
}

func NewPlayer(id string, identity models.FrameIdentity, cfg *config.Config, logger *zap.Logger, metrics *Metrics) (*Player, error) {
	logger = logger.With(zap.String("player", id), zap.Int64("fid", identity.FID))

	engine, err := NewSpinEngine(cfg, logger, WithEngineMetrics(metrics))
	if err != nil {
		return nil, err
	}

	p := &Player{
		ID:       id,
		Identity: identity,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		engine:   engine,
		notifier: nopNotifier{},
	}
	p.session = p.newSession(nil)
	p.Touch()
	return p, nil
}

// Touch records activity for idle cleanup.
func (p *Player) Touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

func (p *Player) LastSeen() time.Time {
	return time.Unix(0, p.lastSeen.Load())
}

// Attached reports whether a page currently relays for this player.
func (p *Player) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, nop := p.notifier.(nopNotifier)
	return !nop
}

func (p *Player) newSession(provider Provider) *WalletSession {
	return NewWalletSession(provider, p.cfg, p.logger,
		WithSessionMetrics(p.metrics),
		WithStateHook(p.pushWalletState),
		WithRestartHook(p.restart),
	)
}

// Attach binds a freshly injected provider, discarding the previous session
// and the score the way a page load would.
func (p *Player) Attach(provider Provider, notifier Notifier) {
	p.swap(provider, notifier, nil)
}

// Detach drops the provider after the page went away.
func (p *Player) Detach() {
	p.Attach(nil, nil)
}

// Release detaches only if notifier still owns the player; a newer page
// that already attached is left alone.
func (p *Player) Release(notifier Notifier) bool {
	return p.swap(nil, nil, notifier)
}

// swap installs a new session for provider. With owner set, the swap only
// happens while owner is still the attached notifier.
func (p *Player) swap(provider Provider, notifier, owner Notifier) bool {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	session := p.newSession(provider)

	p.mu.Lock()
	if owner != nil && p.notifier != owner {
		p.mu.Unlock()
		session.Close()
		return false
	}
	old := p.session
	p.session = session
	p.notifier = notifier
	p.score = 0
	p.spins = 0
	p.mu.Unlock()

	old.Close()
	p.logger.Info("wallet provider attached", zap.Bool("available", provider != nil))
	return true
}

func (p *Player) Session() *WalletSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Player) Connect(ctx context.Context) error {
	return p.Session().Connect(ctx)
}

func (p *Player) Disconnect() {
	p.Session().Disconnect()
}

// Spin runs one paid spin and credits the awarded points.
func (p *Player) Spin(ctx context.Context) (*models.SpinResult, int64, error) {
	result, err := p.engine.Spin(ctx, p.Session())
	if err != nil {
		return nil, p.Score(), err
	}

	p.mu.Lock()
	p.score += result.Outcome.AwardedPoints
	p.spins++
	score := p.score
	notifier := p.notifier
	p.mu.Unlock()

	if err := notifier.Notify(NotifySpinResult, result); err != nil {
		p.logger.Debug("spin result push failed", zap.Error(err))
	}
	return result, score, nil
}

func (p *Player) IsSpinning() bool {
	return p.engine.IsProcessing()
}

func (p *Player) Score() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

// Reset clears everything a page reload would clear.
func (p *Player) Reset() {
	p.mu.Lock()
	p.score = 0
	p.spins = 0
	p.mu.Unlock()
}

func (p *Player) restart() {
	p.Reset()

	p.mu.Lock()
	notifier := p.notifier
	p.mu.Unlock()

	if err := notifier.Notify(NotifyReload, nil); err != nil {
		p.logger.Debug("reload push failed", zap.Error(err))
	}
}

func (p *Player) pushWalletState(state models.WalletState) {
	p.mu.Lock()
	notifier := p.notifier
	p.mu.Unlock()

	if err := notifier.Notify(NotifyWalletState, state.Response()); err != nil {
		p.logger.Debug("wallet state push failed", zap.Error(err))
	}
}

func (p *Player) Snapshot() models.PlayerSnapshot {
	session := p.Session()

	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PlayerSnapshot{
		ID:       p.ID,
		Identity: p.Identity,
		Score:    p.score,
		Spins:    p.spins,
		Wallet:   session.State(),
		Spinning: p.engine.IsProcessing(),
	}
}

func (p *Player) Close() {
	p.Session().Close()
}
