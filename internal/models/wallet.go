package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Network string

const (
	NetworkNone      Network = "none"
	NetworkBase      Network = "base"
	NetworkGameChain Network = "game_chain"
)

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	// StatusError is only reported to the page while a failure message is pending display;
	// the session itself always falls back to StatusDisconnected.
	StatusError ConnectionStatus = "error"
)

// WalletState is a snapshot of a WalletSession. It is copied out of the session,
// never shared.
type WalletState struct {
	Address          *common.Address  `json:"address"`
	ConnectedNetwork Network          `json:"connected_network"`
	TokenBalance     decimal.Decimal  `json:"token_balance"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LastError        string           `json:"last_error,omitempty"`
}

// DisplayStatus folds a pending failure message into the reported status.
func (s WalletState) DisplayStatus() ConnectionStatus {
	if s.ConnectionStatus == StatusDisconnected && s.LastError != "" {
		return StatusError
	}
	return s.ConnectionStatus
}

// FormattedBalance renders the balance with two decimals, e.g. "1234.50".
func (s WalletState) FormattedBalance() string {
	return s.TokenBalance.StringFixed(2)
}

// ShortAddress renders 0x1234...abcd, or an empty string when no account is known.
func (s WalletState) ShortAddress() string {
	if s.Address == nil {
		return ""
	}
	hex := s.Address.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

type BalanceResponse struct {
	Address   string `json:"address"`
	Network   string `json:"network"`
	Balance   string `json:"balance"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

func (s WalletState) Response() BalanceResponse {
	resp := BalanceResponse{
		Network:   string(s.ConnectedNetwork),
		Balance:   s.FormattedBalance(),
		Status:    string(s.DisplayStatus()),
		LastError: s.LastError,
	}
	if s.Address != nil {
		resp.Address = s.Address.Hex()
	}
	return resp
}
