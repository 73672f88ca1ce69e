package crawl

import (
	"context"
	"encoding/json"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/sites"
)

// loadMoreAttrSelectors map DOM hints to the attribute carrying the
// load-more endpoint. Ordered so extraction is deterministic.
var loadMoreAttrSelectors = []struct {
	selector string
	attr     string
}{
	{"[data-load-more-url]", "data-load-more-url"},
	{"[data-loadmore-url]", "data-loadmore-url"},
	{"[data-next-url]", "data-next-url"},
	{`[data-url][data-role*="load"]`, "data-url"},
	{`[data-href][data-role*="load"]`, "data-href"},
}

// loadMoreScriptRes find endpoints embedded in inline script blobs.
var loadMoreScriptRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"loadMoreUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"nextUrl"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)'loadMoreUrl'\s*:\s*'([^']+)'`),
	regexp.MustCompile(`(?i)data-load-more-url="([^"]+)"`),
}

// normalizeLoadMoreURL unescapes and resolves a candidate endpoint.
func normalizeLoadMoreURL(candidate, baseURL string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(html.UnescapeString(candidate), `\/`, "/"))
	if cleaned == "" {
		return ""
	}
	return sites.AbsURL(baseURL, cleaned)
}

// ExtractLoadMoreURLs collects potential load-more endpoints from DOM
// attributes and inline scripts, in document order, deduplicated.
func ExtractLoadMoreURLs(doc *goquery.Document, currentURL string) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(raw string) {
		normalized := normalizeLoadMoreURL(raw, currentURL)
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			urls = append(urls, normalized)
		}
	}

	for _, hint := range loadMoreAttrSelectors {
		doc.Find(hint.selector).Each(func(i int, s *goquery.Selection) {
			if val, ok := s.Attr(hint.attr); ok && val != "" {
				add(val)
				return
			}
			if val, ok := s.Attr("href"); ok {
				add(val)
			}
		})
	}

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}
		for _, re := range loadMoreScriptRes {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				add(m[1])
			}
		}
	})

	return urls
}

// loadMorePayload is the JSON shape load-more endpoints respond with.
// Sites disagree on key names, so several spellings are accepted.
type loadMorePayload struct {
	ItemsHTML      string   `json:"items_html"`
	HTML           string   `json:"html"`
	Content        string   `json:"content"`
	NextURL        string   `json:"next_url"`
	NextURLAlt     string   `json:"nextUrl"`
	LoadMoreURL    string   `json:"loadMoreUrl"`
	LoadMoreURLAlt string   `json:"load_more_url"`
	AdditionalURLs []string `json:"additional_urls"`
	MoreURLs       []string `json:"more_urls"`
	URLs           []string `json:"urls"`
}

func (p *loadMorePayload) fragment() string {
	switch {
	case p.ItemsHTML != "":
		return p.ItemsHTML
	case p.HTML != "":
		return p.HTML
	default:
		return p.Content
	}
}

func (p *loadMorePayload) followups(baseURL string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(raw string) {
		normalized := normalizeLoadMoreURL(raw, baseURL)
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			out = append(out, normalized)
		}
	}
	for _, raw := range []string{p.NextURL, p.NextURLAlt, p.LoadMoreURL, p.LoadMoreURLAlt} {
		if raw != "" {
			add(raw)
		}
	}
	for _, list := range [][]string{p.AdditionalURLs, p.MoreURLs, p.URLs} {
		for _, raw := range list {
			add(raw)
		}
	}
	return out
}

// fetchLoadMorePage fetches a load-more endpoint, which may answer with
// either an HTML fragment or a JSON envelope wrapping one.
func (e *Engine) fetchLoadMorePage(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	targetURL string,
) *prefetchedPage {
	res := sess.Fetch(ctx, targetURL)
	if res.Err != nil || res.HTML == "" {
		return nil
	}

	body := strings.TrimSpace(res.HTML)
	parseSource := body
	var extraURLs []string

	if strings.HasPrefix(body, "{") {
		var payload loadMorePayload
		if err := json.Unmarshal([]byte(body), &payload); err == nil {
			if fragment := payload.fragment(); fragment != "" {
				parseSource = fragment
			}
			extraURLs = payload.followups(targetURL)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(parseSource))
	if err != nil {
		e.log.Debug("load-more parse failed", "url", targetURL, "error", err)
		return nil
	}

	extraURLs = append(extraURLs, ExtractLoadMoreURLs(doc, targetURL)...)

	return &prefetchedPage{
		url:          targetURL,
		doc:          doc,
		records:      adapter.ExtractRecords(doc, targetURL),
		extraURLs:    extraURLs,
		botChallenge: res.BotChallenge,
	}
}

// CandidateNextPageURLs builds next-page URLs by setting each common
// pagination parameter to pageNum, preserving other query values.
func CandidateNextPageURLs(currentURL string, pageNum int) []string {
	parsed, err := url.Parse(currentURL)
	if err != nil {
		return nil
	}

	var candidates []string
	for _, param := range []string{"p", "page", "paged"} {
		q := parsed.Query()
		q.Set(param, strconv.Itoa(pageNum))
		candidate := *parsed
		candidate.RawQuery = q.Encode()
		candidates = append(candidates, candidate.String())
	}
	return candidates
}
