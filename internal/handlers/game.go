package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/services"
)

type GameHandler struct {
	players *services.PlayerRegistry
	logger  *zap.Logger
}

func NewGameHandler(players *services.PlayerRegistry, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		players: players,
		logger:  logger,
	}
}

func (h *GameHandler) ConnectWallet(c *gin.Context) {
	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	if err := player.Connect(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wallet":  player.Session().State().Response(),
	})
}

func (h *GameHandler) DisconnectWallet(c *gin.Context) {
	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	player.Disconnect()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wallet":  player.Session().State().Response(),
	})
}

func (h *GameHandler) GetWallet(c *gin.Context) {
	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	state := player.Session().State()
	c.JSON(http.StatusOK, gin.H{
		"wallet":            state.Response(),
		"formatted_balance": state.FormattedBalance(),
		"short_address":     state.ShortAddress(),
	})
}

func (h *GameHandler) Spin(c *gin.Context) {
	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	result, score, err := player.Spin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spin": gin.H{
			"id":             result.ID,
			"outcome":        result.Outcome.Kind,
			"points":         result.Outcome.AwardedPoints,
			"token_prize":    result.Outcome.TokenPrize,
			"message":        result.Outcome.Message,
			"timestamp":      result.Timestamp,
			"token_tx_hash":  result.TokenTxHash,
			"native_tx_hash": result.NativeTxHash,
		},
		"score": score,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrNotConnected),
		errors.Is(err, services.ErrSpinInProgress),
		errors.Is(err, services.ErrConnectInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrProviderUnavailable),
		errors.Is(err, services.ErrNoAccounts):
		return http.StatusFailedDependency
	default:
		return http.StatusBadRequest
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":   services.UserMessage(err),
		"details": err.Error(),
	})
}
