package services_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
	"spin-miniapp-backend/internal/services"
)

var (
	testAccount  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAccount = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// balanceResult encodes 1234.5 tokens at 18 decimals.
const balanceResult = "0x000000000000000000000000000000000000000000000042ec210956b3ba0000"

// fakeProvider is an in-memory wallet. Chains missing from known answer a
// switch with 4902 until added.
type fakeProvider struct {
	mu sync.Mutex

	accounts    []common.Address
	accountsErr error
	chainID     uint64
	known       map[uint64]bool

	switchErr  error
	addErr     error
	callResult string
	callErr    error
	sendErr    func(tx models.TxRequest) error

	// sendGate, when set, holds every transaction until closed, like an
	// open wallet prompt.
	sendGate chan struct{}

	emitOnSwitch bool

	calls []string
	sent  []models.TxRequest
	subs  map[int]chan<- services.ProviderEvent
	next  int
}

func newFakeProvider(cfg *config.Config) *fakeProvider {
	f := &fakeProvider{
		accounts: []common.Address{testAccount},
		chainID:  1,
		known:    map[uint64]bool{1: true},

		callResult: balanceResult,
		subs:       make(map[int]chan<- services.ProviderEvent),
	}
	f.known[uint64(cfg.Chains.FeeChainID)] = true
	f.known[uint64(cfg.Chains.GameChainID)] = true
	return f
}

func (f *fakeProvider) record(method string) {
	f.calls = append(f.calls, method)
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProvider) Sent() []models.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TxRequest(nil), f.sent...)
}

func (f *fakeProvider) CurrentChain() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

func (f *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("eth_requestAccounts")
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeProvider) ChainID(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("eth_chainId")
	return f.chainID, nil
}

func (f *fakeProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	f.mu.Lock()
	f.record("wallet_switchEthereumChain")
	if f.switchErr != nil {
		err := f.switchErr
		f.mu.Unlock()
		return err
	}
	if !f.known[chainID] {
		f.mu.Unlock()
		return &services.ProviderError{Code: services.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	f.chainID = chainID
	emit := f.emitOnSwitch
	f.mu.Unlock()

	if emit {
		f.Emit(services.ProviderEvent{Kind: services.EventChainChanged, ChainID: chainID})
	}
	return nil
}

func (f *fakeProvider) AddChain(ctx context.Context, chain models.ChainConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wallet_addEthereumChain")
	if f.addErr != nil {
		return f.addErr
	}
	f.known[uint64(chain.ChainID)] = true
	return nil
}

func (f *fakeProvider) SendTransaction(ctx context.Context, tx models.TxRequest) (string, error) {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("eth_sendTransaction")
	if f.sendErr != nil {
		if err := f.sendErr(tx); err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, tx)
	return fmt.Sprintf("0x%064x", len(f.sent)), nil
}

func (f *fakeProvider) Call(ctx context.Context, call models.CallRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("eth_call")
	if f.callErr != nil {
		return "", f.callErr
	}
	return f.callResult, nil
}

func (f *fakeProvider) Subscribe(events chan<- services.ProviderEvent) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = events
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers ev to every subscriber, blocking like a real wallet callback.
func (f *fakeProvider) Emit(ev services.ProviderEvent) {
	f.mu.Lock()
	subs := make([]chan<- services.ProviderEvent, 0, len(f.subs))
	for _, ch := range f.subs {
		subs = append(subs, ch)
	}
	f.mu.Unlock()

	for _, ch := range subs {
		ch <- ev
	}
}

func (f *fakeProvider) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func testConfig() *config.Config {
	return config.Defaults()
}
