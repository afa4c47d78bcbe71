package services

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrNoAccounts          = errors.New("no accounts found")
	ErrConnectInProgress   = errors.New("wallet connection already in progress")
	ErrChainSwitchRejected = errors.New("network switch rejected")
	ErrChainUnknown        = errors.New("network unknown to wallet")
	ErrTransferRejected    = errors.New("transfer rejected")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrBalanceFetchFailed  = errors.New("token balance fetch failed")
	ErrPaymentFailed       = errors.New("spin payment failed")
	ErrSpinInProgress      = errors.New("spin already in progress")
	ErrBridgeClosed        = errors.New("wallet bridge closed")
	ErrSessionClosed       = errors.New("wallet session closed")
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error returned by the injected wallet.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func providerCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// UserMessage turns any failure from the wallet or spin flow into the single
// line shown to the player.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderUnavailable):
		return "Wallet is not available. Please install a browser wallet to continue."
	case errors.Is(err, ErrNoAccounts):
		return "No accounts found. Please unlock your wallet."
	case errors.Is(err, ErrPaymentFailed):
		return "Payment failed! Please try again."
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first!"
	case errors.Is(err, ErrSpinInProgress):
		return "A spin is already being processed."
	case errors.Is(err, ErrChainUnknown):
		return "Network could not be added to the wallet."
	case errors.Is(err, ErrChainSwitchRejected):
		return "Network switch was rejected in the wallet."
	case errors.Is(err, ErrConnectInProgress):
		return "Wallet connection already in progress."
	case errors.Is(err, ErrSessionClosed):
		return "Wallet session ended. Please reload."
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "Failed to connect wallet"
}
