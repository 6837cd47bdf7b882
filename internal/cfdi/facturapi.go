package cfdi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("facturapi: status %d: %s", e.StatusCode, e.Message)
}

// Stamp is the provider's view of a stamped invoice. Raw holds the response
// body exactly as received.
type Stamp struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	CancellationStatus string  `json:"cancellation_status"`
	UUID               string  `json:"uuid"`
	Series             string  `json:"series"`
	FolioNumber        int64   `json:"folio_number"`
	Total              float64 `json:"total"`
	VerificationURL    string  `json:"verification_url"`
	Stamp              struct {
		Date             string `json:"date"`
		Signature        string `json:"signature"`
		SATSignature     string `json:"sat_signature"`
		SATCertNumber    string `json:"sat_cert_number"`
		ComplementString string `json:"complement_string"`
	} `json:"stamp"`

	Raw []byte `json:"-"`
}

// StampDate parses the stamp timestamp, nil when absent or malformed.
func (s *Stamp) StampDate() *time.Time {
	if s.Stamp.Date == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s.Stamp.Date); err == nil {
			return &t
		}
	}
	return nil
}

type facturapiCustomer struct {
	LegalName string           `json:"legal_name"`
	TaxID     string           `json:"tax_id"`
	TaxSystem string           `json:"tax_system"`
	Email     string           `json:"email,omitempty"`
	Address   facturapiAddress `json:"address"`
}

type facturapiAddress struct {
	Zip string `json:"zip"`
}

type facturapiTax struct {
	Type        string  `json:"type"`
	Rate        float64 `json:"rate"`
	Withholding bool    `json:"withholding,omitempty"`
}

type facturapiProduct struct {
	Description string         `json:"description"`
	ProductKey  string         `json:"product_key"`
	Price       float64        `json:"price"`
	TaxIncluded bool           `json:"tax_included"`
	Taxes       []facturapiTax `json:"taxes"`
}

type facturapiItem struct {
	Quantity int64            `json:"quantity"`
	Product  facturapiProduct `json:"product"`
}

type facturapiInvoice struct {
	Customer      facturapiCustomer `json:"customer"`
	Items         []facturapiItem   `json:"items"`
	Use           string            `json:"use"`
	PaymentForm   string            `json:"payment_form"`
	PaymentMethod string            `json:"payment_method"`
	Currency      string            `json:"currency"`
	Series        string            `json:"series,omitempty"`
}

// payload converts a request to the provider's invoice body. Prices go out
// before taxes; the provider computes the same totals as Compute.
func payload(r Request) facturapiInvoice {
	taxes := []facturapiTax{{Type: "IVA", Rate: r.Taxes.IVARate.InexactFloat64()}}
	if r.Taxes.ISRRetention.IsPositive() {
		taxes = append(taxes, facturapiTax{Type: "ISR", Rate: r.Taxes.ISRRetention.InexactFloat64(), Withholding: true})
	}
	if r.Taxes.IVARetention.IsPositive() {
		taxes = append(taxes, facturapiTax{Type: "IVA", Rate: r.Taxes.IVARetention.InexactFloat64(), Withholding: true})
	}

	return facturapiInvoice{
		Customer: facturapiCustomer{
			LegalName: r.Customer.LegalName,
			TaxID:     r.Customer.TaxID,
			TaxSystem: r.Customer.TaxSystem,
			Email:     r.Customer.Email,
			Address:   facturapiAddress{Zip: r.Customer.Zip},
		},
		Items: []facturapiItem{{
			Quantity: r.Item.Quantity,
			Product: facturapiProduct{
				Description: r.Item.Description,
				ProductKey:  r.Item.ProductKey,
				Price:       decimal.New(r.Item.UnitPrice, -2).InexactFloat64(),
				Taxes:       taxes,
			},
		}},
		Use:           r.Use,
		PaymentForm:   r.PaymentForm,
		PaymentMethod: r.PaymentMethod,
		Currency:      r.Currency,
		Series:        r.Series,
	}
}

// FacturapiClient talks to the Facturapi REST API.
type FacturapiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFacturapiClient creates a client. baseURL is overridable for tests.
func NewFacturapiClient(baseURL, apiKey string, httpClient *http.Client) *FacturapiClient {
	return &FacturapiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// CreateInvoice stamps a new invoice.
func (c *FacturapiClient) CreateInvoice(ctx context.Context, r Request) (*Stamp, error) {
	body, err := json.Marshal(payload(r))
	if err != nil {
		return nil, fmt.Errorf("marshaling invoice: %w", err)
	}
	return c.doStamp(ctx, http.MethodPost, "/v2/invoices", bytes.NewReader(body))
}

// CancelInvoice asks the provider to cancel an invoice with a SAT motive.
func (c *FacturapiClient) CancelInvoice(ctx context.Context, id, motive string) (*Stamp, error) {
	path := "/v2/invoices/" + url.PathEscape(id) + "?motive=" + url.QueryEscape(motive)
	return c.doStamp(ctx, http.MethodDelete, path, nil)
}

// DownloadPDF returns the provider-rendered PDF.
func (c *FacturapiClient) DownloadPDF(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, "/v2/invoices/"+url.PathEscape(id)+"/pdf")
}

// DownloadXML returns the stamped XML.
func (c *FacturapiClient) DownloadXML(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, "/v2/invoices/"+url.PathEscape(id)+"/xml")
}

func (c *FacturapiClient) doStamp(ctx context.Context, method, path string, body io.Reader) (*Stamp, error) {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var stamp Stamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return nil, fmt.Errorf("decoding invoice response: %w", err)
	}
	stamp.Raw = data
	return &stamp, nil
}

func (c *FacturapiClient) download(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *FacturapiClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling facturapi %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading facturapi response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	return data, nil
}

func errorMessage(data []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return fallback
}
