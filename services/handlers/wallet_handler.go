package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/shared"
)

type WalletHandler struct {
	ledgerSvc LedgerServiceInterface
}

func NewWalletHandler(ledgerSvc LedgerServiceInterface) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

func (h *WalletHandler) userID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals(shared.UserID).(string)
	if !ok || userID == "" {
		return "", shared.NewUnauthorizedError(errors.New("no identity"), "Authentication required")
	}
	return userID, nil
}

// @Summary Get Solar Balance
// @Description Returns the authenticated user's Solar account balance.
// @Tags wallet
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.BalanceResponse}
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}

	balance, err := h.ledgerSvc.GetBalance(userID)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, balance)
}

// @Summary Get Transaction History
// @Description Returns the authenticated user's ledger entries, newest first.
// @Tags wallet
// @Accept  json
// @Produce json
// @Param limit query int false "Max entries to return"
// @Success 200 {object} shared.Response{data=dto.TransactionHistoryResponse}
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}

	history, err := h.ledgerSvc.GetTransactionHistory(userID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, history)
}

// @Summary Get Leaderboard
// @Description Returns the top Solar balances among registered users.
// @Tags wallet
// @Accept  json
// @Produce json
// @Param limit query int false "Max entries to return"
// @Success 200 {object} shared.Response{data=dto.LeaderboardResponse}
// @Router /api/v1/leaderboard [get]
func (h *WalletHandler) GetLeaderboard(c *fiber.Ctx) error {
	leaderboard, err := h.ledgerSvc.GetLeaderboard(c.QueryInt("limit", 10))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, leaderboard)
}
