package translator

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/config"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[int64]*catalogdomain.Variant

func (m mapLookup) FindByVariantID(_ context.Context, id int64) (*catalogdomain.Variant, error) {
	return m[id], nil
}

func strPtr(s string) *string { return &s }

func testProfile() config.StoreProfile {
	return config.DefaultStoreProfile(config.StoreConfig{
		SalesmanCode:       "D155",
		ShopCode:           "SW004",
		Cashier:            "BOSS",
		CashierNo:          "SW00403",
		OrderNoPrefix:      "SW04W",
		HandlingChargeCode: "HANDLING",
	})
}

func newTestTranslator(t *testing.T, lookup VariantLookup) *Translator {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Hong_Kong")
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))
	return NewTranslator(lookup, config.NewStaticStoreProfileHolder(testProfile()), loc, clk)
}

func loadOrder(t *testing.T, name string) storefrontdomain.Order {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	order, err := storefrontdomain.ParseOrder(raw)
	require.NoError(t, err)
	return order
}

func TestTranslateGolden(t *testing.T) {
	lookup := mapLookup{
		11: {VariantID: 11, SKU: strPtr("S1"), Barcode: strPtr("B1")},
	}
	tr := newTestTranslator(t, lookup)

	doc, err := tr.Translate(context.Background(), loadOrder(t, "order_1001.json"))
	require.NoError(t, err)

	out, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "order_1001", append(out, '\n'))
}

func TestDiscountComputation(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	order := storefrontdomain.Order{
		OrderNumber: "123",
		CreatedAt:   "2024-01-10T10:00:00+08:00",
		TotalPrice:  "24",
		LineItems: []storefrontdomain.LineItem{
			{Name: "Tee", SKU: "S1", Price: "10", Quantity: 3, TotalDiscount: "6"},
		},
	}

	doc, err := tr.Translate(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, doc.Dat, 1)

	line := doc.Dat[0]
	assert.True(t, line.TrxSubAmt.Equal(decimal.NewFromInt(30)), line.TrxSubAmt.String())
	assert.True(t, line.TrxSubDisamt.Equal(decimal.NewFromInt(24)), line.TrxSubDisamt.String())
	assert.True(t, line.ItemDiscount.Equal(decimal.RequireFromString("0.2")), line.ItemDiscount.String())
	assert.Equal(t, "S1", line.ItemCode)
	assert.Equal(t, 1, line.LineNo)
}

func TestDiscountAllocationsTakePrecedence(t *testing.T) {
	item := storefrontdomain.LineItem{
		Price:         "50",
		Quantity:      2,
		TotalDiscount: "99",
		DiscountAllocations: []storefrontdomain.DiscountAllocation{
			{Amount: "5.50"},
			{Amount: "4.50"},
		},
	}
	assert.Equal(t, "10", LineDiscount(item).String())
	assert.Equal(t, "0.1", DiscountRate(LineDiscount(item), decimal.NewFromInt(100)).String())
	assert.True(t, DiscountRate(decimal.NewFromInt(5), decimal.Zero).IsZero())
}

func TestTrxNoIsStableAcrossRetries(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	order := storefrontdomain.Order{OrderNumber: "123", CreatedAt: "2024-01-10T10:00:00+08:00"}

	first, err := tr.TrxNo(order)
	require.NoError(t, err)
	assert.Equal(t, "SW04W2401000123", first)

	tr.clock.(*clock.FakeClock).Advance(62 * 24 * time.Hour)
	second, err := tr.TrxNo(order)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTrxNoFallsBackToClock(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	trxNo, err := tr.TrxNo(storefrontdomain.Order{OrderNumber: "500"})
	require.NoError(t, err)
	assert.Equal(t, "SW04W2403000500", trxNo)
}

func TestTrxNoRequiresOrderNumber(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	_, err := tr.TrxNo(storefrontdomain.Order{})
	assert.ErrorIs(t, err, ErrMissingOrderNumber)
}

func TestFormatTrxNo(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "SW04W2401000123", FormatTrxNo("SW04W", at, "123"))
	assert.Equal(t, "SW04W2401234567", FormatTrxNo("SW04W", at, "1234567"))
}

func TestMemberPriority(t *testing.T) {
	cases := []struct {
		name     string
		customer *storefrontdomain.Customer
		want     string
	}{
		{name: "absent", customer: nil, want: "Anonymous"},
		{name: "phone", customer: &storefrontdomain.Customer{Phone: "+85290000000", Email: "a@b.c"}, want: "+85290000000"},
		{name: "email", customer: &storefrontdomain.Customer{Email: "a@b.c", FirstName: "Amy"}, want: "a@b.c"},
		{name: "name", customer: &storefrontdomain.Customer{FirstName: "Amy", LastName: "Chan"}, want: "Amy Chan"},
		{name: "id", customer: &storefrontdomain.Customer{ID: 7001}, want: "7001"},
		{name: "empty", customer: &storefrontdomain.Customer{}, want: "Anonymous"},
		{name: "truncated", customer: &storefrontdomain.Customer{Email: "someone.long@example.com"}, want: "someone.long@ex"},
	}

	tr := newTestTranslator(t, mapLookup{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := tr.Translate(context.Background(), storefrontdomain.Order{OrderNumber: "1", Customer: tc.customer})
			require.NoError(t, err)
			assert.Equal(t, tc.want, doc.Hdr.UserMember)
		})
	}
}

func TestPayCode(t *testing.T) {
	profile := testProfile()
	cases := []struct {
		name  string
		order storefrontdomain.Order
		want  string
	}{
		{name: "card", order: storefrontdomain.Order{PaymentDetails: &storefrontdomain.PaymentDetails{CreditCardCompany: "Mastercard"}, Gateway: "paypal"}, want: "MC"},
		{name: "gateway", order: storefrontdomain.Order{Gateway: "paypal"}, want: "PL"},
		{name: "case_insensitive", order: storefrontdomain.Order{Gateway: "Shopify_Payments"}, want: "SP"},
		{name: "gateway_names", order: storefrontdomain.Order{GatewayNames: []string{"paypal"}}, want: "PL"},
		{name: "unknown", order: storefrontdomain.Order{Gateway: "cash_on_delivery"}, want: "OT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PayCode(profile, tc.order))
		})
	}
}

func TestItemCodeFallsBackToSkuThenLineSku(t *testing.T) {
	lookup := mapLookup{
		1: {VariantID: 1, SKU: strPtr("MIRROR-SKU")},
		2: {VariantID: 2},
	}
	tr := newTestTranslator(t, lookup)
	v1, v2, v3 := int64(1), int64(2), int64(3)

	doc, err := tr.Translate(context.Background(), storefrontdomain.Order{
		OrderNumber: "1",
		LineItems: []storefrontdomain.LineItem{
			{VariantID: &v1, SKU: "LINE-1", Price: "1", Quantity: 1},
			{VariantID: &v2, SKU: "LINE-2", Price: "1", Quantity: 1},
			{VariantID: &v3, SKU: "LINE-3", Price: "1", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "MIRROR-SKU", doc.Dat[0].ItemCode)
	assert.Equal(t, "LINE-2", doc.Dat[1].ItemCode)
	assert.Equal(t, "LINE-3", doc.Dat[2].ItemCode)
}

func TestDefensiveNumericParsing(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	doc, err := tr.Translate(context.Background(), storefrontdomain.Order{
		OrderNumber: "1",
		TotalPrice:  "12.50 HKD",
		LineItems:   []storefrontdomain.LineItem{{Name: "x", Price: "abc", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "12.5", doc.Hdr.TrxBasAmt.String())
	assert.True(t, doc.Dat[0].TrxSubAmt.IsZero())
	assert.True(t, doc.Dat[0].ItemDiscount.IsZero())
}

func TestItemNameTruncatedToFortyRunes(t *testing.T) {
	tr := newTestTranslator(t, mapLookup{})
	long := strings.Repeat("經典T恤", 12)
	doc, err := tr.Translate(context.Background(), storefrontdomain.Order{
		OrderNumber: "1",
		LineItems:   []storefrontdomain.LineItem{{Name: long, Price: "1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Len(t, []rune(doc.Dat[0].ItemName), 40)
}

func TestEncodeProducesPlainJSON(t *testing.T) {
	payload, err := Encode(Document{Hdr: Header{TrxNo: "T1", TrxBasAmt: NewAmount(decimal.RequireFromString("1.50"))}})
	require.NoError(t, err)
	assert.Contains(t, payload, `"trx_bas_amt":1.5`)
	assert.Contains(t, payload, `"trx_no":"T1"`)
}

func TestEncodeKeepsItemNameVerbatim(t *testing.T) {
	payload, err := Encode(Document{Dat: []Line{{ItemName: "Tom & Jerry <M>"}}})
	require.NoError(t, err)
	assert.Contains(t, payload, `"item_name":"Tom & Jerry <M>"`)
	assert.NotContains(t, payload, `\u0026`)
}
