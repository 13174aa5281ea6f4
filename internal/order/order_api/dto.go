package order_api

import (
	"ms-topup/internal/models"
	"ms-topup/internal/order"
	"ms-topup/internal/order/discount"
	"ms-topup/internal/utils"

	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

type CreatedOrderResponse struct {
	OrderID          string   `json:"orderId"`
	Amount           float64  `json:"amount"`
	OriginalAmount   *float64 `json:"originalAmount,omitempty"`
	DiscountAmount   *float64 `json:"discountAmount,omitempty"`
	VoucherCode      *string  `json:"voucherCode,omitempty"`
	Status           string   `json:"status"`
	Game             string   `json:"game"`
	PlayerID         string   `json:"playerId"`
	PaymentExpiresAt string   `json:"paymentExpiresAt"`
}

func toCreatedOrder(c *order.CreatedOrder) CreatedOrderResponse {
	o := c.Order
	resp := CreatedOrderResponse{
		OrderID:          o.OrderID,
		Amount:           money(o.Amount),
		VoucherCode:      o.VoucherCode,
		Status:           string(o.Status),
		Game:             c.GameName,
		PlayerID:         o.PlayerID,
		PaymentExpiresAt: utils.ISOTime(o.PaymentExpiresAt),
	}
	if o.VoucherCode != nil {
		orig, disc := money(o.OriginalAmount), money(o.DiscountAmount)
		resp.OriginalAmount, resp.DiscountAmount = &orig, &disc
	}
	return resp
}

type OrderResponse struct {
	ID               int64   `json:"id"`
	OrderID          string  `json:"orderId"`
	UserID           int64   `json:"userId"`
	GameID           int64   `json:"gameId"`
	PlayerID         string  `json:"playerId"`
	ServerID         *string `json:"serverId"`
	ProductID        *int64  `json:"productId"`
	Amount           float64 `json:"amount"`
	OriginalAmount   float64 `json:"originalAmount"`
	DiscountAmount   float64 `json:"discountAmount"`
	PaymentMethod    string  `json:"paymentMethod"`
	PaymentMethodID  *int64  `json:"paymentMethodId"`
	VoucherCode      *string `json:"voucherCode"`
	Status           string  `json:"status"`
	Notes            *string `json:"notes"`
	VerifiedBy       *int64  `json:"verifiedBy"`
	VerifiedAt       *string `json:"verifiedAt"`
	CompletedAt      *string `json:"completedAt"`
	PaymentExpiresAt string  `json:"paymentExpiresAt"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`

	GameName          *string `json:"gameName,omitempty"`
	GameImage         *string `json:"gameImage,omitempty"`
	UserName          *string `json:"userName,omitempty"`
	UserEmail         *string `json:"userEmail,omitempty"`
	ProductName       *string `json:"productName,omitempty"`
	PaymentMethodName *string `json:"paymentMethodName,omitempty"`
	PaymentMethodLogo *string `json:"paymentMethodLogo,omitempty"`
	PaymentMethodCode *string `json:"paymentMethodCode,omitempty"`
}

func toOrder(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		OrderID:          o.OrderID,
		UserID:           o.UserID,
		GameID:           o.GameID,
		PlayerID:         o.PlayerID,
		ServerID:         o.ServerID,
		ProductID:        o.ProductID,
		Amount:           money(o.Amount),
		OriginalAmount:   money(o.OriginalAmount),
		DiscountAmount:   money(o.DiscountAmount),
		PaymentMethod:    o.PaymentMethod,
		PaymentMethodID:  o.PaymentMethodID,
		VoucherCode:      o.VoucherCode,
		Status:           string(o.Status),
		Notes:            o.Notes,
		VerifiedBy:       o.VerifiedBy,
		VerifiedAt:       utils.ISOTimePtr(o.VerifiedAt),
		CompletedAt:      utils.ISOTimePtr(o.CompletedAt),
		PaymentExpiresAt: utils.ISOTime(o.PaymentExpiresAt),
		CreatedAt:        utils.ISOTime(o.CreatedAt),
		UpdatedAt:        utils.ISOTime(o.UpdatedAt),
	}
}

func toOrderView(v *models.OrderView) OrderResponse {
	resp := toOrder(&models.Order{
		ID:               v.ID,
		OrderID:          v.OrderID,
		UserID:           v.UserID,
		GameID:           v.GameID,
		PlayerID:         v.PlayerID,
		ServerID:         v.ServerID,
		ProductID:        v.ProductID,
		Amount:           v.Amount,
		OriginalAmount:   v.OriginalAmount,
		DiscountAmount:   v.DiscountAmount,
		PaymentMethod:    v.PaymentMethod,
		PaymentMethodID:  v.PaymentMethodID,
		VoucherCode:      v.VoucherCode,
		Status:           v.Status,
		Notes:            v.Notes,
		VerifiedBy:       v.VerifiedBy,
		VerifiedAt:       v.VerifiedAt,
		CompletedAt:      v.CompletedAt,
		PaymentExpiresAt: v.PaymentExpiresAt,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	})
	resp.GameName = v.GameName
	resp.GameImage = v.GameImage
	resp.UserName = v.UserName
	resp.UserEmail = v.UserEmail
	resp.ProductName = v.ProductName
	resp.PaymentMethodName = v.PaymentMethodName
	resp.PaymentMethodLogo = v.PaymentMethodLogo
	resp.PaymentMethodCode = v.PaymentMethodCode
	return resp
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

func toOrderList(p *order.OrderPage) OrderListResponse {
	orders := make([]OrderResponse, 0, len(p.Orders))
	for i := range p.Orders {
		orders = append(orders, toOrderView(&p.Orders[i]))
	}
	return OrderListResponse{
		Orders:     orders,
		Pagination: Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages},
	}
}

type VerifyResponse struct {
	Updated bool          `json:"updated"`
	Order   OrderResponse `json:"order"`
}

type SweepResponse struct {
	Updated  int      `json:"updated"`
	OrderIDs []string `json:"orderIds"`
}

type VoucherResponse struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
	Discount      float64 `json:"discount"`
	FinalAmount   float64 `json:"finalAmount"`
	MinPurchase   float64 `json:"minPurchase"`
}

func toVoucher(res *discount.Result) map[string]VoucherResponse {
	v := res.Voucher
	return map[string]VoucherResponse{"voucher": {
		ID:            v.ID,
		Code:          v.Code,
		Name:          v.Name,
		Description:   v.Description,
		DiscountType:  string(v.DiscountType),
		DiscountValue: money(v.DiscountValue),
		Discount:      money(res.Discount),
		FinalAmount:   money(res.FinalAmount),
		MinPurchase:   money(v.MinPurchase),
	}}
}

type ValidateVoucherRequest struct {
	Code   string           `json:"code"`
	Amount *decimal.Decimal `json:"amount"`
}
