// Package scraper pulls informational content from the school's public
// website: a short school description and links to the posted schedule
// documents. The site is external and flaky, so callers treat every error as
// "show the default text" rather than a failure of the bot.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/noah-isme/schoolbot/pkg/config"
)

var scheduleExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx"}

// Link is one schedule document posted on the site.
type Link struct {
	Title string
	URL   string
}

// Service fetches and parses school website pages.
type Service struct {
	client       *http.Client
	siteURL      string
	schedulePath string
}

// New constructs a scraper Service from the school site configuration.
func New(cfg config.SchoolConfig) *Service {
	return &Service{
		client:       &http.Client{Timeout: cfg.ScrapeTimeout},
		siteURL:      strings.TrimRight(cfg.SiteURL, "/"),
		schedulePath: strings.Trim(cfg.SchedulePath, "/"),
	}
}

func (s *Service) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// SchoolInfo returns a short description of the school scraped from the main
// page: the page title plus the meta description or leading paragraphs.
func (s *Service) SchoolInfo(ctx context.Context) (string, error) {
	if s.siteURL == "" {
		return "", fmt.Errorf("school site url is not configured")
	}
	doc, err := s.fetch(ctx, s.siteURL)
	if err != nil {
		return "", err
	}

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			parts = append(parts, desc)
		}
	}
	if len(parts) < 2 {
		doc.Find("p").EachWithBreak(func(i int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if text != "" {
				parts = append(parts, text)
			}
			return len(parts) < 3
		})
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no readable content on %s", s.siteURL)
	}
	return strings.Join(parts, "\n\n"), nil
}

// ScheduleLinks returns the schedule documents posted on the schedule page,
// resolved to absolute URLs.
func (s *Service) ScheduleLinks(ctx context.Context) ([]Link, error) {
	if s.siteURL == "" {
		return nil, fmt.Errorf("school site url is not configured")
	}
	pageURL := s.siteURL + "/" + s.schedulePath
	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var links []Link
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !isScheduleDocument(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = abs
		}
		links = append(links, Link{Title: title, URL: abs})
	})

	if len(links) == 0 {
		return nil, fmt.Errorf("no schedule documents on %s", pageURL)
	}
	return links, nil
}

func isScheduleDocument(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range scheduleExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
