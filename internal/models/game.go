package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OutcomeKind string

const (
	OutcomeZonk         OutcomeKind = "zonk"
	OutcomeSmallWin     OutcomeKind = "small_win"
	OutcomeBigWin       OutcomeKind = "big_win"
	OutcomeJackpotToken OutcomeKind = "jackpot_token"
)

// SpinOutcome is one row of the payout table.
type SpinOutcome struct {
	Kind          OutcomeKind `json:"kind"`
	AwardedPoints int64       `json:"awarded_points"`
	Probability   float64     `json:"probability"`
	TokenPrize    bool        `json:"token_prize"`
	Message       string      `json:"message"`
}

// DefaultOutcomeTable is ordered; draws accumulate mass in this order.
var DefaultOutcomeTable = []SpinOutcome{
	{Kind: OutcomeZonk, AwardedPoints: 0, Probability: 0.60, Message: "Better luck next time! 🎭"},
	{Kind: OutcomeSmallWin, AwardedPoints: 10, Probability: 0.25, Message: "You won 10 points! 🎉"},
	{Kind: OutcomeBigWin, AwardedPoints: 25, Probability: 0.10, Message: "You won 25 points! 🎊"},
	{Kind: OutcomeJackpotToken, AwardedPoints: 50, Probability: 0.05, TokenPrize: true, Message: "MONAD Token! 🚀"},
}

// TotalProbability sums the table masses exactly.
func TotalProbability(table []SpinOutcome) decimal.Decimal {
	total := decimal.Zero
	for _, o := range table {
		total = total.Add(decimal.NewFromFloat(o.Probability))
	}
	return total
}

func ValidateOutcomeTable(table []SpinOutcome) error {
	if len(table) == 0 {
		return fmt.Errorf("outcome table is empty")
	}
	for _, o := range table {
		if o.Probability <= 0 || o.Probability > 1 {
			return fmt.Errorf("outcome %s: probability %v out of range (0,1]", o.Kind, o.Probability)
		}
		if o.AwardedPoints < 0 {
			return fmt.Errorf("outcome %s: negative points", o.Kind)
		}
	}
	if total := TotalProbability(table); !total.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("outcome probabilities sum to %s, want 1", total)
	}
	return nil
}

type SpinResult struct {
	ID           string      `json:"id"`
	Outcome      SpinOutcome `json:"outcome"`
	Timestamp    time.Time   `json:"timestamp"`
	TokenTxHash  string      `json:"token_tx_hash"`
	NativeTxHash string      `json:"native_tx_hash"`
}

type PlayerSnapshot struct {
	ID       string        `json:"id"`
	Identity FrameIdentity `json:"identity"`
	Score    int64         `json:"score"`
	Spins    int64         `json:"spins"`
	Wallet   WalletState   `json:"wallet"`
	Spinning bool          `json:"spinning"`
}
