package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/config"
	"spin-miniapp-backend/internal/models"
)

const nativeDecimals = 18

// SpinEngine charges the two spin fees and draws an outcome. At most one
// spin runs per engine; a concurrent Spin fails with ErrSpinInProgress.
type SpinEngine struct {
	chains  config.Chains
	fees    config.Fees
	table   []models.SpinOutcome
	random  func() float64
	now     func() time.Time
	logger  *zap.Logger
	metrics *Metrics

	inFlight atomic.Bool
}

type EngineOption func(*SpinEngine)

func WithOutcomeTable(table []models.SpinOutcome) EngineOption {
	return func(e *SpinEngine) { e.table = table }
}

// WithRandom replaces the uniform [0,1) source used for draws.
func WithRandom(fn func() float64) EngineOption {
	return func(e *SpinEngine) { e.random = fn }
}

func WithEngineMetrics(m *Metrics) EngineOption {
	return func(e *SpinEngine) { e.metrics = m }
}

func NewSpinEngine(cfg *config.Config, logger *zap.Logger, opts ...EngineOption) (*SpinEngine, error) {
	e := &SpinEngine{
		chains: cfg.Chains,
		fees:   cfg.Fees,
		table:  models.DefaultOutcomeTable,
		random: rand.Float64,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := models.ValidateOutcomeTable(e.table); err != nil {
		return nil, fmt.Errorf("invalid outcome table: %w", err)
	}
	return e, nil
}

// IsProcessing reports whether a spin currently holds the engine.
func (e *SpinEngine) IsProcessing() bool {
	return e.inFlight.Load()
}

// Spin pays both fees through session and, only if both succeed, draws an
// outcome. The payment outlives ctx and ends only with the session. The
// caller owns the score.
func (e *SpinEngine) Spin(ctx context.Context, session *WalletSession) (*models.SpinResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.metrics.spin("in_progress")
		return nil, ErrSpinInProgress
	}
	defer e.inFlight.Store(false)

	if session == nil || !session.IsConnected() {
		e.metrics.spin("not_connected")
		return nil, ErrNotConnected
	}

	payCtx, cancel := session.bound(ctx)
	defer cancel()

	tokenHash, nativeHash, err := e.pay(payCtx, session)
	if err != nil {
		e.metrics.spin("payment_failed")
		e.logger.Warn("spin payment failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	outcome := e.Draw(e.random())
	e.metrics.spin("success")
	e.metrics.outcome(outcome)

	result := &models.SpinResult{
		ID:           models.GenerateSpinID(),
		Outcome:      outcome,
		Timestamp:    e.now(),
		TokenTxHash:  tokenHash,
		NativeTxHash: nativeHash,
	}

	e.logger.Info("spin completed",
		zap.String("spin_id", result.ID),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int64("points", outcome.AwardedPoints),
	)
	return result, nil
}

// pay sends the fee-token transfer on the fee network, then the native
// transfer on the game network. The first leg is not refunded when the
// second one fails.
func (e *SpinEngine) pay(ctx context.Context, session *WalletSession) (string, string, error) {
	if err := session.SwitchNetwork(ctx, uint64(e.chains.FeeChainID)); err != nil {
		return "", "", err
	}

	tokenAmount := ToBaseUnits(e.fees.TokenFee, e.fees.TokenDecimals)
	tokenHash, err := session.SendTransaction(ctx, models.TxRequest{
		To:   e.fees.TokenContract,
		Data: EncodeTransfer(e.fees.Treasury, tokenAmount),
		Gas:  e.fees.GasLimit,
	})
	if err != nil {
		return "", "", fmt.Errorf("token fee: %w", err)
	}
	e.logger.Info("fee token transfer submitted", zap.String("tx_hash", tokenHash))

	if err := session.SwitchNetwork(ctx, uint64(e.chains.GameChainID)); err != nil {
		e.reportPartialPayment(tokenHash, err)
		return tokenHash, "", err
	}

	nativeAmount := ToBaseUnits(e.fees.NativeFee, nativeDecimals)
	nativeHash, err := session.SendTransaction(ctx, models.TxRequest{
		To:    e.fees.Treasury,
		Value: (*hexutil.Big)(nativeAmount),
		Gas:   e.fees.GasLimit,
	})
	if err != nil {
		e.reportPartialPayment(tokenHash, err)
		return tokenHash, "", fmt.Errorf("native fee: %w", err)
	}
	e.logger.Info("native fee transfer submitted", zap.String("tx_hash", nativeHash))

	return tokenHash, nativeHash, nil
}

func (e *SpinEngine) reportPartialPayment(tokenHash string, cause error) {
	// TODO: decide with product whether a paid token fee without a native fee
	// should be refunded or granted a spin; today it is only counted and logged.
	e.metrics.partialPayment()
	e.logger.Warn("token fee charged without a spin outcome",
		zap.String("token_tx_hash", tokenHash),
		zap.Error(cause),
	)
}

// Draw selects the outcome for r in [0,1).
func (e *SpinEngine) Draw(r float64) models.SpinOutcome {
	return DrawOutcome(e.table, r)
}

// DrawOutcome walks table in order accumulating probability mass and returns
// the first outcome whose cumulative mass exceeds r. Mass is summed exactly,
// and the last outcome absorbs r values at or past the total. An empty table
// yields the zero outcome; NaN and negative r draw as 0.
func DrawOutcome(table []models.SpinOutcome, r float64) models.SpinOutcome {
	if len(table) == 0 {
		return models.SpinOutcome{}
	}
	switch {
	case math.IsNaN(r) || r < 0:
		r = 0
	case r >= 1:
		return table[len(table)-1]
	}

	target := decimal.NewFromFloat(r)
	cumulative := decimal.Zero

	for _, o := range table {
		cumulative = cumulative.Add(decimal.NewFromFloat(o.Probability))
		if target.LessThan(cumulative) {
			return o
		}
	}
	return table[len(table)-1]
}
