// Package quickcheck implements the pure-HTTP fast path for quickCheck()
// (§6): a Chrome-shaped TLS fingerprint fetch tried before ever opening a
// Browser Session, since most price/availability probes need no JS
// execution. Grounded directly on the teacher's engine.HTTPEngine
// (engine/http_engine.go).
package quickcheck

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"

	"github.com/use-agent/asie/models"
)

// maxBody bounds the response body read, matching the teacher's 10MB cap.
const maxBody = 10 << 20

// priceRegex matches the same currency pattern the DOM Candidate Finder
// uses for the price field (§4.3): a leading currency symbol followed by
// a decimal amount.
var priceRegex = regexp.MustCompile(`[\$€£¥]\s*\d+[.,]?\d*`)

var availabilityTokens = []string{"add to cart", "add to bag", "buy now", "in stock"}
var unavailabilityTokens = []string{"out of stock", "sold out", "unavailable", "notify me"}

// Fetcher performs the fast HTTP probe.
type Fetcher struct {
	client *http.Client
}

var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewFetcher builds a Fetcher with a Chrome-like TLS ClientHello, ALPN
// locked to http/1.1 so the negotiated protocol always matches what Go's
// http.Transport can parse over a utls connection.
func NewFetcher() *Fetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("quickcheck: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("quickcheck: too many redirects")
				}
				return nil
			},
		},
	}
}

// errEscalate signals that the fast path could not resolve the page and
// the caller should escalate to a full Browser Session.
var errEscalate = fmt.Errorf("quickcheck: escalate to browser")

// Check performs the pure-HTTP probe and returns whatever subset of
// price/availability/stock_count it could resolve. Returns errEscalate
// on any condition the caller should treat as "try the browser
// instead" rather than a hard failure: quickCheck never fails outright,
// per §7's "quickCheck returns null for fields it could not resolve".
func (f *Fetcher) Check(ctx context.Context, url string) (*models.QuickCheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errEscalate
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !isHTMLContentType(ct) {
		return nil, errEscalate
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errEscalate
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, errEscalate
	}

	result := &models.QuickCheckResult{}
	result.Price = findPrice(doc)
	result.Availability = findAvailability(doc)
	return result, nil
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// findPrice scans leaf-ish text nodes for the first currency-pattern
// match, mirroring C3's price candidate heuristic (§4.3) without scoring.
func findPrice(doc *goquery.Document) *models.Money {
	var match string
	doc.Find("span, div, p, strong").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) == 0 || len(text) > 40 {
			return true
		}
		if m := priceRegex.FindString(text); m != "" {
			match = m
			return false
		}
		return true
	})
	if match == "" {
		return nil
	}
	return parseMoney(match)
}

// ParseMoneyText exposes parseMoney for callers outside this package that
// already have raw price text sampled from the DOM (e.g. the orchestrator's
// browser-backed quickCheck escalation and full extract() path), so price
// normalization logic lives in exactly one place.
func ParseMoneyText(s string) *models.Money {
	return parseMoney(s)
}

func parseMoney(s string) *models.Money {
	currency := "USD"
	switch {
	case strings.ContainsRune(s, '€'):
		currency = "EUR"
	case strings.ContainsRune(s, '£'):
		currency = "GBP"
	case strings.ContainsRune(s, '¥'):
		currency = "JPY"
	}
	digits := regexp.MustCompile(`\d[\d,]*\.?\d*`).FindString(s)
	digits = strings.ReplaceAll(digits, ",", "")
	amount, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &models.Money{MinorUnits: int64(math.Round(amount * 100)), Currency: currency}
}

func findAvailability(doc *goquery.Document) *models.Availability {
	text := strings.ToLower(doc.Text())
	for _, tok := range unavailabilityTokens {
		if strings.Contains(text, tok) {
			v := models.AvailabilityOutOfStock
			return &v
		}
	}
	for _, tok := range availabilityTokens {
		if strings.Contains(text, tok) {
			v := models.AvailabilityInStock
			return &v
		}
	}
	return nil
}
