package menu

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	logx "cantinabot/pkg/logx"
)

// Discoverer scrapes the month's uploads index page for menu-like PDF links,
// as a hedge against naming-convention drift the static builders can't guess.
// Best effort: any failure yields no extra candidates.
type Discoverer struct {
	client *http.Client
	log    logx.Logger
}

func NewDiscoverer(timeout time.Duration, log logx.Logger) *Discoverer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Discoverer{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		log: log,
	}
}

// Discover returns additional candidate URLs for the cafeteria and day,
// in index order. The result may be empty; it never contains duplicates.
func (d *Discoverer) Discover(ctx context.Context, c *Cantina, day time.Time) []string {
	indexURL := monthPath(day) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; cantinabot/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("index discovery failed", logx.String("url", indexURL), logx.Err(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Debug("index discovery bad status", logx.String("url", indexURL), logx.Int("status", resp.StatusCode))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		d.log.Debug("index discovery parse failed", logx.String("url", indexURL), logx.Err(err))
		return nil
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		name := strings.ToUpper(href)
		if !strings.HasSuffix(name, ".PDF") || !strings.Contains(name, c.DiscoverHint) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})

	if len(out) > 0 {
		d.log.Debug("index discovery found candidates", logx.String("cantina", c.Key), logx.Int("count", len(out)))
	}
	return out
}
