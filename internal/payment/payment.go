package payment

import (
	"net/url"

	"github.com/shopspring/decimal"
)

// Request describes one payment to collect from a participant. Every
// deep-link flavour is built from this one value type; which flavour is in
// use is decided once by configuration, not by call site.
type Request struct {
	Destination string
	Amount      decimal.Decimal
	Currency    string
	Issuer      string
	Tag         string
}

type LinkBuilder interface {
	BuildLink(req Request) string
}

// XamanLinkBuilder produces deep links for the Xaman wallet app.
type XamanLinkBuilder struct {
	// BaseURL overrides the default detect endpoint, mainly for tests.
	BaseURL string
}

func (b XamanLinkBuilder) BuildLink(req Request) string {
	base := b.BaseURL
	if base == "" {
		base = "https://xumm.app/detect/request:"
	}

	v := url.Values{}
	v.Set("amount", req.Amount.String())
	if req.Currency != "" {
		v.Set("currency", req.Currency)
	}
	if req.Issuer != "" {
		v.Set("issuer", req.Issuer)
	}
	if req.Tag != "" {
		v.Set("dt", req.Tag)
	}

	return base + req.Destination + "?" + v.Encode()
}

// PlainURIBuilder produces bare payment: URIs for wallets that register the
// generic scheme.
type PlainURIBuilder struct{}

func (PlainURIBuilder) BuildLink(req Request) string {
	v := url.Values{}
	v.Set("to", req.Destination)
	v.Set("amount", req.Amount.String())
	if req.Currency != "" {
		v.Set("currency", req.Currency)
	}
	if req.Issuer != "" {
		v.Set("issuer", req.Issuer)
	}
	if req.Tag != "" {
		v.Set("tag", req.Tag)
	}
	return "payment:?" + v.Encode()
}

// BuilderForStyle maps the configured link style to a builder. Unknown or
// empty styles get the Xaman builder.
func BuilderForStyle(style string) LinkBuilder {
	switch style {
	case "uri":
		return PlainURIBuilder{}
	default:
		return XamanLinkBuilder{}
	}
}
