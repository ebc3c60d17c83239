package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math/rand"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultPaywayBaseURL = "https://checkout-sandbox.payway.com.kh"

	paywayPurchasePath = "/api/payment-gateway/v1/payments/purchase"
	paywayCheckPath    = "/api/payment-gateway/v1/payments/check-transaction-2"

	// PaywaySignatureHeader carries the base64 HMAC-SHA512 of the raw callback body.
	PaywaySignatureHeader = "X-PayWay-Signature"
)

// PaywayConfig configures the hosted-checkout provider.
type PaywayConfig struct {
	MerchantID  string
	APIKey      string
	BaseURL     string
	ReturnURL   string
	FrontendURL string
	Currency    string
	Timeout     time.Duration
	Now         func() time.Time
}

// PaywayProvider takes payments through ABA PayWay hosted checkout.
type PaywayProvider struct {
	cfg    PaywayConfig
	logger *log.Entry
}

func NewPaywayProvider(cfg PaywayConfig) (*PaywayProvider, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("payway: merchant id and api key are required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPaywayBaseURL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PaywayProvider{cfg: cfg, logger: log.WithField("component", "payway")}, nil
}

func (p *PaywayProvider) Name() string { return models.ProviderPayway }

// Sandbox reports whether the provider points at the PayWay sandbox.
func (p *PaywayProvider) Sandbox() bool {
	return strings.Contains(p.cfg.BaseURL, "sandbox")
}

// sign returns base64(HMAC-SHA512(apiKey, parts...)).
func (p *PaywayProvider) sign(parts ...string) string {
	mac := hmac.New(sha512.New, []byte(p.cfg.APIKey))
	for _, part := range parts {
		mac.Write([]byte(part))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *PaywayProvider) requestTime() string {
	return p.cfg.Now().UTC().Format("20060102150405")
}

// newTranID returns a numeric id of at most 20 characters: millisecond clock plus 3 random digits.
func (p *PaywayProvider) newTranID() string {
	return fmt.Sprintf("%d%03d", p.cfg.Now().UnixMilli(), rand.Intn(1000))
}

// timeout bounds a call by the configured timeout and any earlier context deadline.
func (p *PaywayProvider) timeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := p.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

type paywayItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func (p *PaywayProvider) encodeItems(order *models.Order, names map[string]string) (string, error) {
	items := make([]paywayItem, 0, len(order.Items))
	for _, it := range order.Items {
		name := names[it.ProductID]
		if name == "" {
			name = "Product " + it.ProductID
		}
		price, _ := it.PriceAtTime.Round(2).Float64()
		items = append(items, paywayItem{Name: name, Quantity: it.Quantity, Price: price})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (p *PaywayProvider) Initiate(ctx context.Context, order *models.Order, opts InitiateOptions) (*Transaction, error) {
	amount := order.TotalAmount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.Validation("order total must be positive to start a payment")
	}
	timeout, err := p.timeout(ctx)
	if err != nil {
		return nil, apperrors.ProviderUnavailable(p.Name(), err)
	}

	currency := strings.ToUpper(opts.Currency)
	if currency == "" {
		currency = p.cfg.Currency
	}
	itemsB64, err := p.encodeItems(order, opts.ItemNames)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payway items: %w", err)
	}

	reqTime := p.requestTime()
	tranID := p.newTranID()
	amountStr := formatAmount(amount)
	shipping := formatAmount(order.ShippingAmount)
	returnURL := base64.StdEncoding.EncodeToString([]byte(p.cfg.ReturnURL))
	cancelURL := p.cfg.FrontendURL + "/carts"
	continueURL := fmt.Sprintf("%s/orders/%s/confirmation?payment=success&provider=payway", p.cfg.FrontendURL, order.ID)
	txType := "purchase"

	// Field order is fixed by the gateway; unused optional fields hash as empty strings.
	hash := p.sign(
		reqTime, p.cfg.MerchantID, tranID, amountStr, itemsB64, shipping,
		"", "", "", "", // firstname, lastname, email, phone
		txType, opts.PaymentOption, returnURL, cancelURL, continueURL,
		"", // return_deeplink
		currency,
		"", // custom_fields
		order.ID,
		"", "", "", "", "", // payout, lifetime, additional_params, google_pay_token, skip_success_page
	)

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("req_time", reqTime)
	args.Set("merchant_id", p.cfg.MerchantID)
	args.Set("tran_id", tranID)
	args.Set("amount", amountStr)
	args.Set("items", itemsB64)
	args.Set("shipping", shipping)
	args.Set("currency", currency)
	args.Set("type", txType)
	if opts.PaymentOption != "" {
		args.Set("payment_option", opts.PaymentOption)
	}
	args.Set("return_url", returnURL)
	args.Set("cancel_url", cancelURL)
	args.Set("continue_success_url", continueURL)
	args.Set("return_params", order.ID)
	args.Set("view_type", "popup")
	args.Set("hash", hash)

	agent := fiber.Post(p.cfg.BaseURL + paywayPurchasePath).MultipartForm(args).Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, apperrors.ProviderUnavailable(p.Name(), errors.Join(errs...))
	}
	if code >= fiber.StatusInternalServerError {
		return nil, apperrors.ProviderUnavailable(p.Name(), fmt.Errorf("purchase returned status %d", code))
	}

	checkout, err := paywayCheckoutHTML(body)
	if err != nil {
		return nil, err
	}
	if code >= fiber.StatusBadRequest {
		return nil, apperrors.BadRequest(fmt.Sprintf("payway rejected the purchase request with status %d", code))
	}

	p.logger.WithFields(log.Fields{"order_id": order.ID, "tran_id": tranID}).Info("PayWay purchase created")
	return &Transaction{
		ID:       tranID,
		Currency: currency,
		Payload: Payload{
			Provider:      p.Name(),
			TransactionID: tranID,
			CheckoutHTML:  checkout,
		},
	}, nil
}

type paywayStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type paywayPurchaseResponse struct {
	Status   *paywayStatus `json:"status"`
	QRString string        `json:"qrString"`
	QRImage  string        `json:"qrImage"`
	Amount   any           `json:"amount"`
	Currency string        `json:"currency"`
}

var paywayQRPage = template.Must(template.New("khqr").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>ABA KHQR</title></head>
<body style="font-family:sans-serif;text-align:center">
<h2>Scan to pay</h2>
{{if .QRImage}}<img src="{{.QRImage}}" alt="KHQR" style="max-width:280px">{{end}}
{{if .QRString}}<p style="word-break:break-all;font-size:12px">{{.QRString}}</p>{{end}}
{{if .Amount}}<p>{{.Amount}} {{.Currency}}</p>{{end}}
</body></html>`))

// paywayCheckoutHTML turns a purchase response into a page the client can render.
// Hosted checkout answers with HTML; KHQR answers with JSON.
func paywayCheckoutHTML(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(body), nil
	}

	var resp paywayPurchaseResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return string(body), nil
	}
	if resp.QRImage == "" && resp.QRString == "" {
		if resp.Status != nil && resp.Status.Code != "" && resp.Status.Code != "0" && resp.Status.Code != "00" {
			return "", apperrors.BadRequest("payway: " + resp.Status.Message)
		}
		return string(body), nil
	}

	var buf bytes.Buffer
	if err := paywayQRPage.Execute(&buf, resp); err != nil {
		return "", fmt.Errorf("failed to render khqr page: %w", err)
	}
	return buf.String(), nil
}

type paywayCheckResponse struct {
	Data *struct {
		PaymentStatusCode *int   `json:"payment_status_code"`
		PaymentStatus     string `json:"payment_status"`
	} `json:"data"`
	Status *paywayStatus `json:"status"`
}

func (p *PaywayProvider) Verify(ctx context.Context, transactionID string) (models.PaymentOutcome, error) {
	timeout, err := p.timeout(ctx)
	if err != nil {
		return "", apperrors.ProviderUnavailable(p.Name(), err)
	}

	reqTime := p.requestTime()
	payload := map[string]string{
		"req_time":    reqTime,
		"merchant_id": p.cfg.MerchantID,
		"tran_id":     transactionID,
		"hash":        p.sign(reqTime, p.cfg.MerchantID, transactionID),
	}

	code, body, errs := fiber.Post(p.cfg.BaseURL + paywayCheckPath).JSON(payload).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return "", apperrors.ProviderUnavailable(p.Name(), errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return "", apperrors.ProviderUnavailable(p.Name(), fmt.Errorf("check-transaction returned status %d", code))
	}

	var resp paywayCheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.ProviderUnavailable(p.Name(), fmt.Errorf("unreadable check-transaction response: %w", err))
	}
	return paywayOutcome(resp), nil
}

func paywayOutcome(resp paywayCheckResponse) models.PaymentOutcome {
	if resp.Data == nil {
		return models.OutcomePending
	}
	if resp.Data.PaymentStatusCode != nil && *resp.Data.PaymentStatusCode == 0 {
		return models.OutcomeApproved
	}
	switch strings.ToUpper(resp.Data.PaymentStatus) {
	case "APPROVED":
		return models.OutcomeApproved
	case "DECLINED", "CANCELLED", "FAILED", "EXPIRED":
		return models.OutcomeFailed
	default:
		return models.OutcomePending
	}
}

type paywayCallback struct {
	TranID       string `json:"tran_id"`
	APV          string `json:"apv"`
	Status       any    `json:"status"`
	ReturnParams string `json:"return_params"`
}

func (p *PaywayProvider) HandleCallback(raw []byte, signature string) (*Notification, error) {
	if signature == "" {
		return nil, apperrors.InvalidSignature(p.Name())
	}
	expected := p.sign(string(raw))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return nil, apperrors.InvalidSignature(p.Name())
	}

	var cb paywayCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, apperrors.Validation("payway callback body is not valid JSON")
	}
	if cb.TranID == "" {
		return nil, apperrors.Validation("payway callback is missing tran_id")
	}

	outcome := models.OutcomeFailed
	if fmt.Sprint(cb.Status) == "0" {
		outcome = models.OutcomeApproved
	}
	return &Notification{
		OrderID:       cb.ReturnParams,
		TransactionID: cb.TranID,
		Outcome:       outcome,
	}, nil
}

// formatAmount renders an amount the way the gateway hashes it: no trailing zeros.
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).String()
}
