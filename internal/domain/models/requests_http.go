package models

// Requests for market data HTTP endpoints. Defined in domain for consistency and reuse.

type QuoteRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"required,max=32"`
	FailClosed bool   `query:"fail_closed" json:"fail_closed"`
}

type OHLCVRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Interval   string `query:"interval" json:"interval" default:"1d" validate:"oneof=1d 1h 30m 15m 5m 1m"`
	From       string `query:"from" json:"from"`
	To         string `query:"to" json:"to"`
	Days       int    `query:"days" json:"days" default:"120" validate:"gte=1,lte=3650"`
	MinPoints  int    `query:"min_points" json:"min_points" default:"1" validate:"gte=0,lte=5000"`
	FailClosed bool   `query:"fail_closed" json:"fail_closed"`
}

type PriceAtRequest struct {
	Symbol        string `query:"symbol" json:"symbol" validate:"required,max=32"`
	At            string `query:"at" json:"at" validate:"required"`
	ToleranceDays int    `query:"tolerance_days" json:"tolerance_days" default:"3" validate:"gte=0,lte=30"`
	FailClosed    bool   `query:"fail_closed" json:"fail_closed"`
}

type NormalizeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type BatchQuoteRequest struct {
	Symbols     []string `json:"symbols" validate:"required,min=1,max=200"`
	FailClosed  bool     `json:"fail_closed"`
	Concurrency int      `json:"concurrency" default:"8" validate:"gte=1,lte=64"`
}
