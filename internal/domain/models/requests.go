package models

// Requests for report HTTP endpoints. Defined in domain for consistency and reuse.

type DateRequest struct {
	Date string `param:"date" json:"date" validate:"required,datetime=2006-01-02"`
}

type ScoresRequest struct {
	Date   string `param:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Bucket string `query:"bucket" json:"bucket" validate:"omitempty,oneof=trend stable liquidity volatility"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=2000"`
}
