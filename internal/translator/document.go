package translator

import (
	"github.com/shopspring/decimal"
)

// Amount is a decimal rendered as a bare JSON number, the way the POS expects.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// Document is the POS sales transaction: header, lines and payments.
type Document struct {
	Hdr Header    `json:"hdr"`
	Dat []Line    `json:"dat"`
	Pay []Payment `json:"pay"`
}

type Header struct {
	TrxNo        string `json:"trx_no"`
	TrxType      string `json:"trx_type"`
	DocType      string `json:"doc_type"`
	TrxDate      string `json:"trx_date"`
	UserMember   string `json:"user_member"`
	CurrCode     string `json:"curr_code"`
	ExchRate     int    `json:"exch_rate"`
	TrxBasAmt    Amount `json:"trx_bas_amt"`
	TrxStatus    string `json:"trx_status"`
	ShCode       string `json:"sh_code"`
	WhCodeFrom   string `json:"wh_code_from"`
	WhCodeTo     string `json:"wh_code_to"`
	SalesmanCode string `json:"salesman_code"`
	ChgRate      int    `json:"chg_rate"`
	Cashier      string `json:"cashier"`
	CashiNo      string `json:"cashi_no"`
}

type Line struct {
	TrxNo        string `json:"trx_no"`
	LineNo       int    `json:"line_no"`
	ItemCode     string `json:"item_code"`
	ItemName     string `json:"item_name"`
	TrxType      string `json:"trx_type"`
	UnitPrice    Amount `json:"unit_price"`
	ItemQty      int    `json:"item_qty"`
	ItemDiscount Amount `json:"item_discount"`
	TrxSubAmt    Amount `json:"trx_sub_amt"`
	TrxSubDisamt Amount `json:"trx_sub_disamt"`
	MemADis      int    `json:"mem_a_dis"`
	DisAmt       int    `json:"dis_amt"`
	SalesmanCode string `json:"salesman_code"`
	ShCode       string `json:"sh_code"`
}

type Payment struct {
	TrxNo     string `json:"trx_no"`
	LineNo    int    `json:"line_no"`
	PayCode   string `json:"pay_code"`
	PayAccAmt Amount `json:"pay_acc_amt"`
	PayBasAmt Amount `json:"pay_bas_amt"`
	CurrCode  string `json:"curr_code"`
	ExchRate  int    `json:"exch_rate"`
	IsCash    string `json:"is_cash"`
}
