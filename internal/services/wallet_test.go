package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"spin-miniapp-backend/internal/models"
	"spin-miniapp-backend/internal/services"
)

func newSession(t *testing.T, p services.Provider, opts ...services.SessionOption) *services.WalletSession {
	t.Helper()
	s := services.NewWalletSession(p, testConfig(), zap.NewNop(), opts...)
	t.Cleanup(s.Close)
	return s
}

func TestConnectWithoutProvider(t *testing.T) {
	s := newSession(t, nil)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, services.ErrProviderUnavailable)

	state := s.State()
	assert.Equal(t, models.StatusDisconnected, state.ConnectionStatus)
	assert.Equal(t, models.StatusError, state.DisplayStatus())
	assert.Contains(t, state.LastError, "install a browser wallet")
	assert.Nil(t, state.Address)
}

func TestConnectNoAccounts(t *testing.T) {
	p := newFakeProvider(testConfig())
	p.accounts = nil
	s := newSession(t, p)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, services.ErrNoAccounts)
	assert.Equal(t, models.StatusDisconnected, s.State().ConnectionStatus)
	assert.NotContains(t, p.Calls(), "wallet_switchEthereumChain")
}

func TestConnectEndsOnGameChain(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name  string
		start uint64
	}{
		{"from mainnet", 1},
		{"from fee chain", uint64(cfg.Chains.FeeChainID)},
		{"from game chain", uint64(cfg.Chains.GameChainID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(cfg)
			p.chainID = tt.start
			s := newSession(t, p)

			require.NoError(t, s.Connect(context.Background()))

			state := s.State()
			assert.Equal(t, models.StatusConnected, state.ConnectionStatus)
			assert.Equal(t, models.NetworkGameChain, state.ConnectedNetwork)
			assert.Equal(t, "1234.50", state.FormattedBalance())
			assert.Equal(t, testAccount, *state.Address)
			assert.Empty(t, state.LastError)
			assert.Equal(t, uint64(cfg.Chains.GameChainID), p.CurrentChain())
		})
	}
}

func TestConnectReadsBalanceOnFeeChain(t *testing.T) {
	cfg := testConfig()
	p := newFakeProvider(cfg)
	s := newSession(t, p)

	require.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, []string{
		"eth_requestAccounts",
		"eth_chainId",
		"wallet_switchEthereumChain",
		"eth_call",
		"wallet_switchEthereumChain",
	}, p.Calls())
}

func TestConnectAddsUnknownChain(t *testing.T) {
	cfg := testConfig()
	p := newFakeProvider(cfg)
	delete(p.known, uint64(cfg.Chains.GameChainID))
	s := newSession(t, p)

	require.NoError(t, s.Connect(context.Background()))

	assert.Contains(t, p.Calls(), "wallet_addEthereumChain")
	assert.Equal(t, models.NetworkGameChain, s.State().ConnectedNetwork)
}

func TestConnectAddChainRejected(t *testing.T) {
	cfg := testConfig()
	p := newFakeProvider(cfg)
	delete(p.known, uint64(cfg.Chains.FeeChainID))
	p.addErr = &services.ProviderError{Code: services.CodeUserRejected, Message: "User rejected the request."}
	s := newSession(t, p)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, services.ErrChainSwitchRejected)
	assert.Equal(t, models.StatusDisconnected, s.State().ConnectionStatus)
	assert.NotContains(t, p.Calls(), "eth_call")
}

func TestConnectSwitchRejected(t *testing.T) {
	p := newFakeProvider(testConfig())
	p.switchErr = &services.ProviderError{Code: services.CodeUserRejected, Message: "User rejected the request."}
	s := newSession(t, p)

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, services.ErrChainSwitchRejected)

	state := s.State()
	assert.Equal(t, models.StatusDisconnected, state.ConnectionStatus)
	assert.Equal(t, "Network switch was rejected in the wallet.", state.LastError)
}

func TestConnectBalanceFailureDefaultsToZero(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		callErr error
	}{
		{"call rejected", "", errors.New("execution reverted")},
		{"garbage result", "0xzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(testConfig())
			p.callResult = tt.result
			p.callErr = tt.callErr
			s := newSession(t, p)

			require.NoError(t, s.Connect(context.Background()))
			assert.True(t, s.State().TokenBalance.IsZero())
			assert.Equal(t, "0.00", s.State().FormattedBalance())
		})
	}
}

func TestFetchTokenBalance(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)

	balance := s.FetchTokenBalance(context.Background(), testAccount)
	assert.Equal(t, "1234.5", balance.String())

	p.callErr = errors.New("rpc down")
	assert.Equal(t, "0", s.FetchTokenBalance(context.Background(), testAccount).String())
}

func TestDisconnectResetsState(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)
	require.NoError(t, s.Connect(context.Background()))

	s.Disconnect()

	state := s.State()
	assert.Equal(t, models.StatusDisconnected, state.ConnectionStatus)
	assert.Equal(t, models.NetworkNone, state.ConnectedNetwork)
	assert.Nil(t, state.Address)
	assert.True(t, state.TokenBalance.IsZero())
}

func TestEmptyAccountsChangedDisconnects(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)
	require.NoError(t, s.Connect(context.Background()))

	p.Emit(services.ProviderEvent{Kind: services.EventAccountsChanged})

	require.Eventually(t, func() bool {
		return s.State().ConnectionStatus == models.StatusDisconnected
	}, time.Second, 10*time.Millisecond)
	assert.True(t, s.State().TokenBalance.IsZero())
	assert.Nil(t, s.State().Address)
}

func TestAccountsChangedRefreshesBalance(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)
	require.NoError(t, s.Connect(context.Background()))

	p.mu.Lock()
	p.callResult = "0x0000000000000000000000000000000000000000000000000de0b6b3a7640000" // 1 token
	p.mu.Unlock()

	s.HandleEvent(services.ProviderEvent{
		Kind:     services.EventAccountsChanged,
		Accounts: []common.Address{otherAccount},
	})

	state := s.State()
	assert.Equal(t, models.StatusConnected, state.ConnectionStatus)
	assert.Equal(t, otherAccount, *state.Address)
	assert.Equal(t, "1.00", state.FormattedBalance())
}

func TestAccountsChangedIgnoredWhileDisconnected(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)

	s.HandleEvent(services.ProviderEvent{
		Kind:     services.EventAccountsChanged,
		Accounts: []common.Address{otherAccount},
	})

	assert.Nil(t, s.State().Address)
	assert.NotContains(t, p.Calls(), "eth_call")
}

func TestOutOfBandChainChangeRestarts(t *testing.T) {
	p := newFakeProvider(testConfig())
	var restarts atomic.Int32
	s := newSession(t, p, services.WithRestartHook(func() { restarts.Add(1) }))
	require.NoError(t, s.Connect(context.Background()))

	p.Emit(services.ProviderEvent{Kind: services.EventChainChanged, ChainID: 1})

	require.Eventually(t, func() bool {
		return restarts.Load() == 1
	}, time.Second, 10*time.Millisecond)

	state := s.State()
	assert.Equal(t, models.StatusDisconnected, state.ConnectionStatus)
	assert.Equal(t, models.NetworkNone, state.ConnectedNetwork)
}

func TestOwnChainSwitchesDoNotRestart(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newFakeProvider(testConfig())
	p.emitOnSwitch = true

	s := services.NewWalletSession(p, testConfig(), zap.New(core))
	t.Cleanup(s.Close)
	require.NoError(t, s.Connect(context.Background()))

	// A marker switch queued behind the session's own notifications.
	p.Emit(services.ProviderEvent{Kind: services.EventChainChanged, ChainID: 1})

	restarts := func() []observer.LoggedEntry {
		return logs.FilterMessage("network changed outside the session, restarting").All()
	}
	require.Eventually(t, func() bool {
		return len(restarts()) > 0
	}, time.Second, 10*time.Millisecond)

	entries := restarts()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].ContextMap()["chain_id"])
}

func TestCloseUnsubscribes(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := services.NewWalletSession(p, testConfig(), zap.NewNop())
	require.Equal(t, 1, p.Subscribers())

	s.Close()
	s.Close()

	assert.Equal(t, 0, p.Subscribers())
	assert.ErrorIs(t, s.Connect(context.Background()), services.ErrSessionClosed)
}

func TestSendTransactionRequiresConnection(t *testing.T) {
	p := newFakeProvider(testConfig())
	s := newSession(t, p)

	_, err := s.SendTransaction(context.Background(), models.TxRequest{To: testAccount})
	require.ErrorIs(t, err, services.ErrNotConnected)
	assert.Empty(t, p.Sent())
}

func TestStateHookSeesConnectProgress(t *testing.T) {
	p := newFakeProvider(testConfig())

	var seen []models.ConnectionStatus
	s := newSession(t, p, services.WithStateHook(func(st models.WalletState) {
		seen = append(seen, st.ConnectionStatus)
	}))

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}, seen)
}
