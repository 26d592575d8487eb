package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Credentials authenticate the session and the process lock.
type Credentials struct {
	Username     string
	Password     string
	UserID       string
	UserPassword string
}

// Session is owned by exactly one in-flight operation. LockID is empty until the
// process lock has been acquired.
type Session struct {
	LoginID string
	LockID  string
}

const (
	WindowActionUpdate = "update__window_data"
	WindowActionExport = "export__window_data"

	TargetSales = "SAL"
	TargetStock = "STK"
)

// ResponseError is the POS error block.
type ResponseError struct {
	ErrCode int    `json:"ErrCode"`
	ErrMsg  string `json:"ErrMsg"`
}

// Response is the generic POS reply shape.
type Response struct {
	Data       json.RawMessage `json:"Data"`
	Error      *ResponseError  `json:"Error"`
	WarningMsg []string        `json:"WarningMsg"`
}

// Result classifies a reply to a submitted transaction.
type Result string

const (
	ResultSuccess   Result = "success"
	ResultDuplicate Result = "duplicate"
	ResultFailure   Result = "failure"
)

// HasData reports whether Data is present and not JSON null.
func (r *Response) HasData() bool {
	if r == nil {
		return false
	}
	trimmed := strings.TrimSpace(string(r.Data))
	return trimmed != "" && trimmed != "null"
}

// Classify interprets the reply for the given transaction number. The POS
// reports an already imported transaction as "<entity>: Trx. no. exists:<trxNo>".
func (r *Response) Classify(trxNo string) (Result, error) {
	if r == nil {
		return ResultFailure, &LogicalError{Code: 0, Message: "empty response"}
	}
	if r.HasData() {
		return ResultSuccess, nil
	}
	if r.Error == nil {
		return ResultFailure, &LogicalError{Code: 0, Message: "response carried neither data nor error"}
	}
	if r.Error.ErrCode == -1 && IsDuplicateMessage(r.Error.ErrMsg, trxNo) {
		return ResultDuplicate, nil
	}
	return ResultFailure, &LogicalError{Code: r.Error.ErrCode, Message: r.Error.ErrMsg}
}

// IsDuplicateMessage matches "<entity>: Trx. no. exists:<trxNo>".
func IsDuplicateMessage(msg, trxNo string) bool {
	if trxNo == "" {
		return false
	}
	msg = strings.TrimSpace(msg)
	suffix := ": Trx. no. exists:" + trxNo
	if !strings.HasSuffix(msg, suffix) {
		return false
	}
	entity := strings.TrimSuffix(msg, suffix)
	return entity != "" && !strings.ContainsAny(entity, " :")
}

// StockLevel is one row of the POS stock feed.
type StockLevel struct {
	ItemCode string      `json:"item_code"`
	Qty      json.Number `json:"qty"`
}

// ParseStockFeed decodes the Data field of a stock export, which the POS
// returns as a JSON string wrapping the row array.
func ParseStockFeed(data json.RawMessage) ([]StockLevel, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidFeed)
	}

	raw := []byte(trimmed)
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
		}
		raw = []byte(inner)
	}

	var rows []StockLevel
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	return rows, nil
}
