package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"spin-miniapp-backend/internal/models"
)

// Provider is the injected wallet capability. Calls block until the wallet
// answers; there is no built-in timeout.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, chain models.ChainConfig) error
	SendTransaction(ctx context.Context, tx models.TxRequest) (string, error)
	Call(ctx context.Context, call models.CallRequest) (string, error)

	// Subscribe delivers accountsChanged/chainChanged notifications to events
	// until the returned func is called.
	Subscribe(events chan<- ProviderEvent) (unsubscribe func())
}

type ProviderEventKind string

const (
	EventAccountsChanged ProviderEventKind = "accountsChanged"
	EventChainChanged    ProviderEventKind = "chainChanged"
)

type ProviderEvent struct {
	Kind     ProviderEventKind
	Accounts []common.Address
	ChainID  uint64
}
