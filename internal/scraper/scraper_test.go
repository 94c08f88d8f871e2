package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schoolbot/pkg/config"
)

const mainPage = `<html>
<head>
  <title>School No. 42</title>
  <meta name="description" content="A public school with a focus on sciences.">
</head>
<body><p>Welcome!</p></body>
</html>`

const schedulePage = `<html><body>
  <a href="/files/schedule_grades_5-9.pdf">Grades 5-9</a>
  <a href="files/schedule_grades_10-11.xlsx">Grades 10-11</a>
  <a href="/files/schedule_grades_5-9.pdf">Grades 5-9 duplicate</a>
  <a href="/news/">News</a>
</body></html>`

func newTestService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(mainPage))
		case "/glavnoe/raspisanie":
			_, _ = w.Write([]byte(schedulePage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc := New(config.SchoolConfig{
		SiteURL:       srv.URL,
		SchedulePath:  "glavnoe/raspisanie/",
		ScrapeTimeout: time.Second,
	})
	return svc, srv
}

func TestSchoolInfo(t *testing.T) {
	svc, _ := newTestService(t)

	info, err := svc.SchoolInfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info, "School No. 42")
	assert.Contains(t, info, "focus on sciences")
}

func TestScheduleLinksResolvedAndDeduplicated(t *testing.T) {
	svc, srv := newTestService(t)

	links, err := svc.ScheduleLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Grades 5-9", links[0].Title)
	assert.Equal(t, srv.URL+"/files/schedule_grades_5-9.pdf", links[0].URL)
	assert.Equal(t, srv.URL+"/files/schedule_grades_10-11.xlsx", links[1].URL)
}

func TestScheduleLinksNoneFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/news/">News only</a></body></html>`))
	}))
	defer srv.Close()

	svc := New(config.SchoolConfig{SiteURL: srv.URL, SchedulePath: "schedule", ScrapeTimeout: time.Second})
	_, err := svc.ScheduleLinks(context.Background())
	require.Error(t, err)
}

func TestSchoolInfoUnreachableSite(t *testing.T) {
	svc := New(config.SchoolConfig{SiteURL: "http://127.0.0.1:1", ScrapeTimeout: 200 * time.Millisecond})
	_, err := svc.SchoolInfo(context.Background())
	require.Error(t, err)
}

func TestUnconfiguredSite(t *testing.T) {
	svc := New(config.SchoolConfig{})
	_, err := svc.SchoolInfo(context.Background())
	require.Error(t, err)
	_, err = svc.ScheduleLinks(context.Background())
	require.Error(t, err)
}
