package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
)

const sessionEventBuffer = 16

// WalletSession tracks one viewer's wallet: account, active network and the
// fee-token balance snapshot. Provider notifications are drained by a
// goroutine the session owns until Close.
type WalletSession struct {
	provider Provider
	chains   config.Chains
	fees     config.Fees
	logger   *zap.Logger
	metrics  *Metrics

	onChange  func(models.WalletState)
	onRestart func()

	mu    sync.RWMutex
	state models.WalletState
	// expected counts chainChanged notifications the session caused itself.
	expected map[uint64]int

	events      chan ProviderEvent
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

type SessionOption func(*WalletSession)

// WithStateHook is called with a fresh snapshot after every state change.
func WithStateHook(fn func(models.WalletState)) SessionOption {
	return func(s *WalletSession) { s.onChange = fn }
}

// WithRestartHook is called after an out-of-band network change reset the
// session. The hook must not Close the session.
func WithRestartHook(fn func()) SessionOption {
	return func(s *WalletSession) { s.onRestart = fn }
}

func WithSessionMetrics(m *Metrics) SessionOption {
	return func(s *WalletSession) { s.metrics = m }
}

// NewWalletSession subscribes to provider notifications; provider may be nil,
// in which case Connect reports ErrProviderUnavailable.
func NewWalletSession(provider Provider, cfg *config.Config, logger *zap.Logger, opts ...SessionOption) *WalletSession {
	ctx, cancel := context.WithCancel(context.Background())

	s := &WalletSession{
		provider: provider,
		chains:   cfg.Chains,
		fees:     cfg.Fees,
		logger:   logger,
		state:    emptyWalletState(),
		expected: make(map[uint64]int),
		events:   make(chan ProviderEvent, sessionEventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if provider != nil {
		s.unsubscribe = provider.Subscribe(s.events)
	}
	go s.run()

	return s
}

func emptyWalletState() models.WalletState {
	return models.WalletState{
		ConnectedNetwork: models.NetworkNone,
		TokenBalance:     decimal.Zero,
		ConnectionStatus: models.StatusDisconnected,
	}
}

func (s *WalletSession) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.HandleEvent(ev)
		}
	}
}

// Close tears down the provider subscription and stops the event loop.
func (s *WalletSession) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cancel()
		<-s.done
	})
}

func (s *WalletSession) State() models.WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *WalletSession) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ConnectionStatus == models.StatusConnected
}

func (s *WalletSession) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Address == nil {
		return common.Address{}, false
	}
	return *s.state.Address, true
}

// bound returns a context that keeps parent's values but not its
// cancellation or deadline; it ends when the session is closed.
func (s *WalletSession) bound(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Connect runs the full connection sequence: account access, switch to the
// fee-token network, balance read, switch to the game network. A failure at
// any step leaves the session Disconnected with a user-facing message.
func (s *WalletSession) Connect(ctx context.Context) (err error) {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	if s.provider == nil {
		s.failConnect(ErrProviderUnavailable)
		return ErrProviderUnavailable
	}

	s.mu.Lock()
	if s.state.ConnectionStatus == models.StatusConnecting {
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	s.state.ConnectionStatus = models.StatusConnecting
	s.state.LastError = ""
	s.mu.Unlock()
	s.notify()

	defer func() {
		if err != nil {
			s.failConnect(err)
		}
	}()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	current, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if current != uint64(s.chains.FeeChainID) {
		if err := s.ensureChain(ctx, s.chains.FeeChain()); err != nil {
			return err
		}
	} else {
		s.setNetwork(current)
	}

	address := accounts[0]
	s.mu.Lock()
	s.state.Address = &address
	s.mu.Unlock()

	balance := s.FetchTokenBalance(ctx, address)
	s.mu.Lock()
	s.state.TokenBalance = balance
	s.mu.Unlock()

	if err := s.ensureChain(ctx, s.chains.GameChain()); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.ConnectionStatus = models.StatusConnected
	s.mu.Unlock()

	s.metrics.connection("success")
	s.logger.Info("wallet connected",
		zap.String("address", address.Hex()),
		zap.String("balance", balance.StringFixed(2)),
	)
	s.notify()

	return nil
}

func (s *WalletSession) failConnect(err error) {
	s.mu.Lock()
	s.state.ConnectionStatus = models.StatusDisconnected
	s.state.LastError = UserMessage(err)
	s.mu.Unlock()

	s.metrics.connection("failed")
	s.logger.Warn("wallet connection failed", zap.Error(err))
	s.notify()
}

// ensureChain switches to chain, registering it with the wallet first when
// the wallet reports it as unknown.
func (s *WalletSession) ensureChain(ctx context.Context, chain models.ChainConfig) error {
	id := uint64(chain.ChainID)

	s.expectSwitch(id)
	err := s.provider.SwitchChain(ctx, id)
	if err != nil && providerCode(err) == CodeUnrecognizedChain {
		s.logger.Info("network unknown to wallet, adding it",
			zap.String("chain", chain.ChainName),
			zap.Uint64("chain_id", id),
		)
		// Some wallets activate the chain on add; either way one
		// notification is expected.
		if addErr := s.provider.AddChain(ctx, chain); addErr != nil {
			s.cancelSwitch(id)
			return fmt.Errorf("%w: add %s: %w", ErrChainSwitchRejected, chain.ChainName, addErr)
		}
		err = s.provider.SwitchChain(ctx, id)
		if err != nil && providerCode(err) == CodeUnrecognizedChain {
			s.cancelSwitch(id)
			return fmt.Errorf("%w: %s", ErrChainUnknown, chain.ChainName)
		}
	}
	if err != nil {
		s.cancelSwitch(id)
		return fmt.Errorf("%w: %s: %w", ErrChainSwitchRejected, chain.ChainName, err)
	}

	s.setNetwork(id)
	return nil
}

// SwitchNetwork makes chainID the wallet's active network if it is not
// already. No add-network fallback is attempted.
func (s *WalletSession) SwitchNetwork(ctx context.Context, chainID uint64) error {
	if s.provider == nil {
		return ErrProviderUnavailable
	}

	current, err := s.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if current == chainID {
		s.setNetwork(current)
		return nil
	}

	s.expectSwitch(chainID)
	if err := s.provider.SwitchChain(ctx, chainID); err != nil {
		s.cancelSwitch(chainID)
		return fmt.Errorf("%w: chain %d: %w", ErrChainSwitchRejected, chainID, err)
	}
	s.setNetwork(chainID)
	return nil
}

// SendTransaction submits tx from the connected account.
func (s *WalletSession) SendTransaction(ctx context.Context, tx models.TxRequest) (string, error) {
	if s.provider == nil {
		return "", ErrProviderUnavailable
	}
	from, ok := s.Address()
	if !ok || !s.IsConnected() {
		return "", ErrNotConnected
	}
	tx.From = from

	hash, err := s.provider.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}
	return hash, nil
}

// FetchTokenBalance reads the fee-token balance of owner. Any failure yields
// zero; the error is logged, not returned.
func (s *WalletSession) FetchTokenBalance(ctx context.Context, owner common.Address) decimal.Decimal {
	balance, err := s.readTokenBalance(ctx, owner)
	if err != nil {
		s.logger.Warn("token balance unavailable, using zero",
			zap.String("address", owner.Hex()),
			zap.Error(fmt.Errorf("%w: %w", ErrBalanceFetchFailed, err)),
		)
		return decimal.Zero
	}
	return balance
}

func (s *WalletSession) readTokenBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	if s.provider == nil {
		return decimal.Zero, ErrProviderUnavailable
	}

	result, err := s.provider.Call(ctx, models.CallRequest{
		To:   s.fees.TokenContract,
		Data: EncodeBalanceOf(owner),
	})
	if err != nil {
		return decimal.Zero, err
	}

	raw, err := DecodeUint256(result)
	if err != nil {
		return decimal.Zero, err
	}
	return FromBaseUnits(raw, s.fees.TokenDecimals), nil
}

// Disconnect is a purely local reset; wallets expose no revocation call.
func (s *WalletSession) Disconnect() {
	s.mu.Lock()
	s.state = emptyWalletState()
	s.expected = make(map[uint64]int)
	s.mu.Unlock()

	s.logger.Info("wallet disconnected")
	s.notify()
}

// HandleEvent applies one provider notification. It is invoked by the event
// loop and may be called directly.
func (s *WalletSession) HandleEvent(ev ProviderEvent) {
	switch ev.Kind {
	case EventAccountsChanged:
		s.handleAccountsChanged(ev.Accounts)
	case EventChainChanged:
		s.handleChainChanged(ev.ChainID)
	default:
		s.logger.Debug("ignoring provider event", zap.String("kind", string(ev.Kind)))
	}
}

func (s *WalletSession) handleAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		s.Disconnect()
		return
	}

	s.mu.Lock()
	if s.state.ConnectionStatus != models.StatusConnected {
		s.mu.Unlock()
		return
	}
	address := accounts[0]
	s.state.Address = &address
	s.mu.Unlock()

	balance := s.FetchTokenBalance(s.ctx, address)

	s.mu.Lock()
	if s.state.Address != nil && *s.state.Address == address {
		s.state.TokenBalance = balance
	}
	s.mu.Unlock()

	s.logger.Info("wallet account changed", zap.String("address", address.Hex()))
	s.notify()
}

// handleChainChanged ignores switches the session requested itself. Any
// other switch means wallet state can no longer be trusted, so the session
// resets and asks its owner to restart.
func (s *WalletSession) handleChainChanged(chainID uint64) {
	s.mu.Lock()
	if s.expected[chainID] > 0 {
		s.expected[chainID]--
		s.mu.Unlock()
		return
	}
	if chainID == s.chainIDFor(s.state.ConnectedNetwork) {
		s.mu.Unlock()
		return
	}
	s.state = emptyWalletState()
	s.expected = make(map[uint64]int)
	s.mu.Unlock()

	s.logger.Warn("network changed outside the session, restarting", zap.Uint64("chain_id", chainID))
	s.notify()

	if s.onRestart != nil {
		s.onRestart()
	}
}

func (s *WalletSession) expectSwitch(chainID uint64) {
	s.mu.Lock()
	s.expected[chainID]++
	s.mu.Unlock()
}

func (s *WalletSession) cancelSwitch(chainID uint64) {
	s.mu.Lock()
	if s.expected[chainID] > 0 {
		s.expected[chainID]--
	}
	s.mu.Unlock()
}

func (s *WalletSession) setNetwork(chainID uint64) {
	s.mu.Lock()
	s.state.ConnectedNetwork = s.networkFor(chainID)
	s.mu.Unlock()
}

func (s *WalletSession) networkFor(chainID uint64) models.Network {
	switch chainID {
	case uint64(s.chains.FeeChainID):
		return models.NetworkBase
	case uint64(s.chains.GameChainID):
		return models.NetworkGameChain
	default:
		return models.NetworkNone
	}
}

func (s *WalletSession) chainIDFor(network models.Network) uint64 {
	switch network {
	case models.NetworkBase:
		return uint64(s.chains.FeeChainID)
	case models.NetworkGameChain:
		return uint64(s.chains.GameChainID)
	default:
		return 0
	}
}

func (s *WalletSession) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.State())
}
