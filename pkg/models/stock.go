package models

import (
	"math"
	"time"
)

// StockRecord represents one symbol's document in the stock collection.
// The symbol doubles as the document _id, which is what enforces uniqueness.
type StockRecord struct {
	Symbol string  `bson:"_id" json:"symbol"`
	Price  float64 `bson:"price" json:"price"`
}

// OpKind mirrors the change stream operation types, plus the synthetic
// "initial" kind emitted while replaying the watched set on startup.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpUpdate  OpKind = "update"
	OpReplace OpKind = "replace"
	OpDelete  OpKind = "delete"
	OpInitial OpKind = "initial"
)

// ChangeEvent is the renderer-facing view of a single mutation.
type ChangeEvent struct {
	Op     OpKind       `json:"op"`
	Symbol string       `json:"symbol"`
	Record *StockRecord `json:"record,omitempty"` // nil for deletes
	At     time.Time    `json:"at"`
}

// DefaultWatched is the demo's watched portfolio. Overridable via config.
var DefaultWatched = []string{
	"MDB", "MULE", "ORCL", "IBM", "SAP", "ADBE", "AMZN",
	"MSFT", "CSCO", "VMW", "AAPL", "GOOGL", "FB",
}

// companyNames gives the table view something friendlier than a bare
// ticker. Display-only, never stored.
var companyNames = map[string]string{
	"MDB":   "MongoDB Inc.",
	"MULE":  "MuleSoft Inc",
	"ORCL":  "Oracle Corp.",
	"IBM":   "IBM Corp.",
	"SAP":   "SAP SE",
	"ADBE":  "Adobe Inc.",
	"AMZN":  "Amazon.com Inc.",
	"MSFT":  "Microsoft Corp.",
	"CSCO":  "Cisco Systems Inc.",
	"VMW":   "VMware Inc.",
	"AAPL":  "Apple Inc.",
	"GOOGL": "Alphabet Inc.",
	"FB":    "Facebook Inc.",
}

// CompanyName returns the display name for a symbol, or "" if unknown.
func CompanyName(symbol string) string {
	return companyNames[symbol]
}

// RandomPrice maps a uniform [0,1) draw onto the symbol's price band,
// rounded to cents. MDB trades at 90-100 so its row is easy to spot in the
// demo; everything else shares the 20-90 band.
func RandomPrice(symbol string, unit float64) float64 {
	low, high := 20.0, 90.0
	if symbol == "MDB" {
		low, high = 90.0, 100.0
	}
	return math.Round((low+unit*(high-low))*100) / 100
}
