// README: Wallet handlers; balance, ledger listing, top-up webhook, refunds.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxiride/internal/modules/reservation"
	"taxiride/internal/modules/wallet"
	"taxiride/internal/types"
)

type WalletHandler struct {
	wallet      *wallet.Service
	reservation *reservation.Service
}

func NewWalletHandler(walletSvc *wallet.Service, reservationSvc *reservation.Service) *WalletHandler {
	return &WalletHandler{wallet: walletSvc, reservation: reservationSvc}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	b, err := h.wallet.Balance(c.Request.Context(), authedID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"user_id":    b.UserID,
		"balance":    b.Stars,
		"updated_at": b.UpdatedAt,
	})
}

func (h *WalletHandler) Transactions(c *gin.Context) {
	txs, err := h.wallet.Transactions(c.Request.Context(), authedID(c), 50)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(txs))
	for _, t := range txs {
		out = append(out, gin.H{
			"tx_id":         t.ID,
			"ref":           t.Ref,
			"direction":     t.Direction,
			"amount_stars":  t.AmountStars,
			"reason":        t.Reason,
			"order_id":      t.OrderID,
			"related_tx_id": t.RelatedTxID,
			"created_at":    t.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"transactions": out})
}

type topupReq struct {
	UserID      string `json:"user_id"`
	AmountStars int64  `json:"amount_stars"`
	OrderID     string `json:"order_id"`
	PaymentRef  string `json:"payment_ref"`
}

// Topup is the payment collaborator's confirmation webhook: credit the
// wallet, then retry the commission capture for the pending order if one was
// named.
func (h *WalletHandler) Topup(c *gin.Context) {
	if !requireRole(c, "payment") {
		return
	}
	var req topupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	meta := map[string]string{}
	if req.PaymentRef != "" {
		meta["payment_ref"] = req.PaymentRef
	}
	entry, after, err := h.wallet.CreditTopup(c.Request.Context(), wallet.CreditCommand{
		UserID: types.ID(req.UserID),
		Amount: types.Stars(req.AmountStars),
		Meta:   meta,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	resp := gin.H{"tx_id": entry.ID, "balance": after}
	if req.OrderID != "" {
		res, err := h.reservation.CaptureAfterTopup(c.Request.Context(), types.ID(req.OrderID), types.ID(req.UserID))
		if err != nil {
			// The credit stands regardless; report the capture outcome
			// separately so the collaborator can retry.
			resp["capture_error"] = "order no longer available"
		} else {
			resp["capture"] = reservationView(res)
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

type refundReq struct {
	UserID      string `json:"user_id"`
	AmountStars int64  `json:"amount_stars"`
	RelatedTxID *int64 `json:"related_tx_id"`
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason"`
}

func (h *WalletHandler) Refund(c *gin.Context) {
	if !requireRole(c, "payment") {
		return
	}
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var orderID *types.ID
	if req.OrderID != "" {
		v := types.ID(req.OrderID)
		orderID = &v
	}
	meta := map[string]string{}
	if req.Reason != "" {
		meta["reason"] = req.Reason
	}
	entry, after, err := h.wallet.CreditRefund(c.Request.Context(), wallet.CreditCommand{
		UserID:      types.ID(req.UserID),
		OrderID:     orderID,
		Amount:      types.Stars(req.AmountStars),
		RelatedTxID: req.RelatedTxID,
		Meta:        meta,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tx_id": entry.ID, "balance": after})
}
