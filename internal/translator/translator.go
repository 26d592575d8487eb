// Package translator maps storefront orders onto POS sales documents.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posbridge/internal/cache"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/config"
	posdomain "github.com/smallbiznis/posbridge/internal/pos/domain"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"go.uber.org/fx"
)

const (
	TrxDateLayout = "2006-01-02  15:04:05"

	trxTypeSale      = "SAL"
	docTypeSale      = "SA1"
	lineTypeSale     = "S"
	trxStatus        = "T"
	paymentNotCash   = "H"
	anonymousMember  = "Anonymous"
	orderNumberWidth = 6
)

var ErrMissingOrderNumber = errors.New("missing_order_number")

// VariantLookup resolves mirrored variants. A missing variant is (nil, nil).
type VariantLookup interface {
	FindByVariantID(ctx context.Context, variantID int64) (*catalogdomain.Variant, error)
}

// ProfileSource serves the current store profile.
type ProfileSource interface {
	Get() config.StoreProfile
}

type Params struct {
	fx.In

	Config   config.Config
	Profiles *config.StoreProfileHolder
	Variants *cache.VariantCache
	Clock    clock.Clock
}

type Translator struct {
	lookup   VariantLookup
	profiles ProfileSource
	loc      *time.Location
	clock    clock.Clock
}

func New(p Params) *Translator {
	return NewTranslator(p.Variants, p.Profiles, p.Config.POS.Location(), p.Clock)
}

func NewTranslator(lookup VariantLookup, profiles ProfileSource, loc *time.Location, clk clock.Clock) *Translator {
	if loc == nil {
		loc = time.UTC
	}
	return &Translator{lookup: lookup, profiles: profiles, loc: loc, clock: clk}
}

// TrxNo derives the POS transaction number: prefix, two-digit year, two-digit
// month and the order number padded to six digits. Year and month come from
// the order creation time in the POS time zone so retries in a later month
// still produce the same number.
func (t *Translator) TrxNo(order storefrontdomain.Order) (string, error) {
	number, err := orderNumber(order)
	if err != nil {
		return "", err
	}
	prefix := t.profiles.Get().Store.OrderNoPrefix
	return FormatTrxNo(prefix, t.orderTime(order), number), nil
}

// FormatTrxNo assembles a transaction number from its parts.
func FormatTrxNo(prefix string, at time.Time, number string) string {
	if len(number) < orderNumberWidth {
		number = strings.Repeat("0", orderNumberWidth-len(number)) + number
	} else if len(number) > orderNumberWidth {
		number = number[len(number)-orderNumberWidth:]
	}
	return fmt.Sprintf("%s%02d%02d%s", prefix, at.Year()%100, int(at.Month()), number)
}

// Translate builds the POS document for order.
func (t *Translator) Translate(ctx context.Context, order storefrontdomain.Order) (Document, error) {
	trxNo, err := t.TrxNo(order)
	if err != nil {
		return Document{}, err
	}
	profile := t.profiles.Get()
	store := profile.Store
	total := order.TotalPrice.Decimal()

	doc := Document{
		Hdr: Header{
			TrxNo:        trxNo,
			TrxType:      trxTypeSale,
			DocType:      docTypeSale,
			TrxDate:      t.orderTime(order).Format(TrxDateLayout),
			UserMember:   truncate(memberID(order.Customer), profile.MemberMaxRunes),
			CurrCode:     order.Currency,
			ExchRate:     1,
			TrxBasAmt:    NewAmount(total),
			TrxStatus:    trxStatus,
			ShCode:       store.ShopCode,
			WhCodeFrom:   store.ShopCode,
			WhCodeTo:     "",
			SalesmanCode: store.SalesmanCode,
			ChgRate:      1,
			Cashier:      store.Cashier,
			CashiNo:      store.CashierNo,
		},
		Dat: make([]Line, 0, len(order.LineItems)+len(order.ShippingLines)),
	}

	for _, item := range order.LineItems {
		code, err := t.itemCode(ctx, item)
		if err != nil {
			return Document{}, err
		}
		price := item.Price.Decimal()
		qty := decimal.NewFromInt(int64(item.Quantity))
		sub := price.Mul(qty)
		discount := LineDiscount(item)

		doc.Dat = append(doc.Dat, Line{
			TrxNo:        trxNo,
			LineNo:       len(doc.Dat) + 1,
			ItemCode:     code,
			ItemName:     truncate(item.Name, profile.ItemNameMaxRunes),
			TrxType:      lineTypeSale,
			UnitPrice:    NewAmount(price),
			ItemQty:      item.Quantity,
			ItemDiscount: NewAmount(DiscountRate(discount, sub)),
			TrxSubAmt:    NewAmount(sub),
			TrxSubDisamt: NewAmount(sub.Sub(discount)),
			SalesmanCode: store.SalesmanCode,
			ShCode:       store.CashierNo,
		})
	}

	for _, shipping := range order.ShippingLines {
		price := shipping.DiscountedPrice.Decimal()
		if shipping.DiscountedPrice == "" {
			price = shipping.Price.Decimal()
		}
		doc.Dat = append(doc.Dat, Line{
			TrxNo:        trxNo,
			LineNo:       len(doc.Dat) + 1,
			ItemCode:     store.HandlingChargeCode,
			ItemName:     truncate(shipping.Title, profile.ItemNameMaxRunes),
			TrxType:      lineTypeSale,
			UnitPrice:    NewAmount(price),
			ItemQty:      1,
			ItemDiscount: NewAmount(decimal.Zero),
			TrxSubAmt:    NewAmount(price),
			TrxSubDisamt: NewAmount(price),
			SalesmanCode: store.SalesmanCode,
			ShCode:       store.CashierNo,
		})
	}

	doc.Pay = []Payment{{
		TrxNo:     trxNo,
		LineNo:    1,
		PayCode:   PayCode(profile, order),
		PayAccAmt: NewAmount(total),
		PayBasAmt: NewAmount(total),
		CurrCode:  order.Currency,
		ExchRate:  1,
		IsCash:    paymentNotCash,
	}}

	return doc, nil
}

// Encode renders the document as the plain JSON carried in the data parameter.
func Encode(doc Document) (string, error) {
	raw, err := posdomain.MarshalJSON(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// LineDiscount sums the discount allocations of the line, or falls back to the
// line's total_discount when it has none.
func LineDiscount(item storefrontdomain.LineItem) decimal.Decimal {
	if len(item.DiscountAllocations) == 0 {
		return item.TotalDiscount.Decimal()
	}
	sum := decimal.Zero
	for _, allocation := range item.DiscountAllocations {
		sum = sum.Add(allocation.Amount.Decimal())
	}
	return sum
}

// DiscountRate is discount over subtotal, zero for a zero subtotal.
func DiscountRate(discount, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return discount.Div(subtotal)
}

// PayCode maps the card company, or the gateway when no card details exist,
// to the POS tender code.
func PayCode(profile config.StoreProfile, order storefrontdomain.Order) string {
	name := order.Gateway
	if order.PaymentDetails != nil && strings.TrimSpace(order.PaymentDetails.CreditCardCompany) != "" {
		name = order.PaymentDetails.CreditCardCompany
	} else if strings.TrimSpace(name) == "" && len(order.GatewayNames) > 0 {
		name = order.GatewayNames[0]
	}
	name = strings.TrimSpace(name)
	for _, pc := range profile.PaymentCodes {
		if strings.EqualFold(pc.Name, name) {
			return pc.Code
		}
	}
	return profile.DefaultPayCode
}

func (t *Translator) itemCode(ctx context.Context, item storefrontdomain.LineItem) (string, error) {
	if item.VariantID != nil && *item.VariantID > 0 && t.lookup != nil {
		variant, err := t.lookup.FindByVariantID(ctx, *item.VariantID)
		if err != nil {
			return "", fmt.Errorf("resolve variant %d: %w", *item.VariantID, err)
		}
		if variant != nil {
			if code := variant.ItemCode(); code != "" {
				return code, nil
			}
		}
	}
	return strings.TrimSpace(item.SKU), nil
}

func (t *Translator) orderTime(order storefrontdomain.Order) time.Time {
	if created := strings.TrimSpace(order.CreatedAt); created != "" {
		if at, err := time.Parse(time.RFC3339, created); err == nil {
			return at.In(t.loc)
		}
	}
	return t.clock.Now().In(t.loc)
}

func orderNumber(order storefrontdomain.Order) (string, error) {
	raw := strings.TrimSpace(order.OrderNumber.String())
	if raw == "" {
		return "", ErrMissingOrderNumber
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		if d.Sign() <= 0 {
			return "", ErrMissingOrderNumber
		}
		return d.Round(0).String(), nil
	}
	return raw, nil
}

func memberID(customer *storefrontdomain.Customer) string {
	if customer == nil {
		return anonymousMember
	}
	for _, candidate := range []string{
		strings.TrimSpace(customer.Phone),
		strings.TrimSpace(customer.Email),
		customer.FullName(),
	} {
		if candidate != "" {
			return candidate
		}
	}
	if customer.ID > 0 {
		return fmt.Sprintf("%d", customer.ID)
	}
	return anonymousMember
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
