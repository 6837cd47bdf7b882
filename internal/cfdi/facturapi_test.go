package cfdi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stampResponse = `{
	"id": "inv_123",
	"status": "valid",
	"uuid": "A1B2C3D4-0000-4000-8000-000000000001",
	"series": "F",
	"folio_number": 42,
	"total": 1160,
	"verification_url": "https://verificacfdi.facturaelectronica.sat.gob.mx/?id=A1B2",
	"stamp": {
		"date": "2024-03-15T10:20:30.000Z",
		"signature": "sig",
		"sat_signature": "satsig",
		"sat_cert_number": "00001000000504465028",
		"complement_string": "||1.1|A1B2||"
	}
}`

func TestFacturapiCreateInvoice(t *testing.T) {
	var got facturapiInvoice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, stampResponse)
	}))
	defer srv.Close()

	req := validRequest()
	req.Taxes.ISRRetention = decimal.RequireFromString("0.10")
	req.Normalize()

	c := NewFacturapiClient(srv.URL+"/", "sk_test", srv.Client())
	stamp, err := c.CreateInvoice(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "inv_123", stamp.ID)
	assert.Equal(t, "A1B2C3D4-0000-4000-8000-000000000001", stamp.UUID)
	assert.Equal(t, int64(42), stamp.FolioNumber)
	assert.Equal(t, "00001000000504465028", stamp.Stamp.SATCertNumber)
	assert.NotEmpty(t, stamp.Raw)

	require.Len(t, got.Items, 1)
	assert.Equal(t, 1000.0, got.Items[0].Product.Price)
	assert.Equal(t, "80111600", got.Items[0].Product.ProductKey)
	require.Len(t, got.Items[0].Product.Taxes, 2)
	assert.Equal(t, "ISR", got.Items[0].Product.Taxes[1].Type)
	assert.True(t, got.Items[0].Product.Taxes[1].Withholding)
	assert.Equal(t, "CNO190101AB1", got.Customer.TaxID)
	assert.Equal(t, "64000", got.Customer.Address.Zip)
	assert.Equal(t, "PUE", got.PaymentMethod)
	assert.Equal(t, "MXN", got.Currency)
}

func TestFacturapiCancelInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/invoices/inv_123", r.URL.Path)
		assert.Equal(t, "02", r.URL.Query().Get("motive"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"id":"inv_123","status":"canceled","cancellation_status":"accepted"}`)
	}))
	defer srv.Close()

	c := NewFacturapiClient(srv.URL, "sk_test", srv.Client())
	stamp, err := c.CancelInvoice(context.Background(), "inv_123", MotiveWithErrorsUnrelated)
	require.NoError(t, err)
	assert.Equal(t, "canceled", stamp.Status)
	assert.Equal(t, "accepted", stamp.CancellationStatus)
}

func TestFacturapiDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/invoices/inv_123/pdf":
			_, _ = io.WriteString(w, "%PDF-1.4")
		case "/v2/invoices/inv_123/xml":
			_, _ = io.WriteString(w, "<cfdi:Comprobante/>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewFacturapiClient(srv.URL, "sk_test", srv.Client())

	pdf, err := c.DownloadPDF(context.Background(), "inv_123")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(pdf))

	xml, err := c.DownloadXML(context.Background(), "inv_123")
	require.NoError(t, err)
	assert.Equal(t, "<cfdi:Comprobante/>", string(xml))
}

func TestFacturapiAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "json message", status: http.StatusBadRequest, body: `{"message":"El RFC del receptor no existe"}`, message: "El RFC del receptor no existe"},
		{name: "plain body", status: http.StatusBadGateway, body: "upstream down", message: "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewFacturapiClient(srv.URL, "sk_test", srv.Client())
			_, err := c.CreateInvoice(context.Background(), validRequest())
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestStampDate(t *testing.T) {
	var s Stamp
	assert.Nil(t, s.StampDate())

	s.Stamp.Date = "2024-03-15T10:20:30.000Z"
	d := s.StampDate()
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, 30, d.Second())

	s.Stamp.Date = "2024-03-15T10:20:30"
	require.NotNil(t, s.StampDate())

	s.Stamp.Date = "yesterday"
	assert.Nil(t, s.StampDate())
}
