package service

import (
	"math/big"
	"strings"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/shopspring/decimal"
)

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PageRequest is a 1-based page and page size as received from clients.
type PageRequest struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1"`
}

func (svc *InvoiceFlowService) normalizePage(req PageRequest) (page, limit, offset int) {
	page = req.Page
	if page < 1 {
		page = 1
	}
	limit = req.Limit
	if limit < 1 {
		limit = svc.Config.DefaultPageSize
	}
	if limit > svc.Config.MaxPageSize {
		limit = svc.Config.MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

func newPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// FormatUnits renders a base-unit amount with the 18 decimal token scale,
// trimming trailing zeros.
func FormatUnits(amount decimal.Decimal) string {
	return amount.Shift(-common.TokenDecimals).String()
}

func decimalFromBig(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func shortAddress(address string) string {
	if len(address) <= 8 {
		return address
	}
	return address[:8] + "..."
}
