package nico

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/retry"
)

// fakeSite serves the site's endpoints from a local mux.
type fakeSite struct {
	*httptest.Server
	mux *http.ServeMux
	ep  Endpoints
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fakeSite{Server: srv, mux: mux, ep: LocalEndpoints(srv.URL)}
}

func testHTTPConfig() *httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.RateLimiter.DefaultRPS = 0
	cfg.RateLimiter.HostRates = nil
	cfg.RateLimiter.EnableDynamicBackoff = false
	cfg.Retry = retry.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
	return cfg
}

// session returns an unauthenticated session bound to the fake site.
func (s *fakeSite) session() *Session {
	return &Session{Client: httpclient.New(testHTTPConfig()), Endpoints: s.ep}
}

func fastFetch() FetchOptions {
	return FetchOptions{
		Logger:            zerolog.Nop(),
		Interval:          time.Millisecond,
		AccessLockWait:    time.Millisecond,
		AccessLockRetries: 3,
	}
}

// descriptor renders an "ok" descriptor document.
func descriptor(id, title, length, thumb string) string {
	owner := `<user_id>1</user_id><user_nickname>uploader &amp; co</user_nickname><user_icon_url>http://icon/1.jpg</user_icon_url>`
	if !Classify(id).UserContent() {
		owner = `<ch_id>7</ch_id><ch_name>channel</ch_name><ch_icon_url>http://icon/ch7.jpg</ch_icon_url>`
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<nicovideo_thumb_response status="ok">
<thumb>
<video_id>%[1]s</video_id>
<title>%[2]s</title>
<description>desc</description>
<thumbnail_url>%[4]s</thumbnail_url>
<first_retrieve>2007-03-06T00:33:00+09:00</first_retrieve>
<length>%[3]s</length>
<movie_type>mp4</movie_type>
<size_high>100</size_high>
<size_low>50</size_low>
<view_counter>10</view_counter>
<comment_num>20</comment_num>
<mylist_counter>30</mylist_counter>
<last_res_body>hello</last_res_body>
<watch_url>http://www.nicovideo.jp/watch/%[1]s</watch_url>
<embeddable>1</embeddable>
<no_live_play>0</no_live_play>
<tags domain="jp">
<tag lock="1">tag&amp;one</tag>
<tag>two</tag>
</tags>
%[5]s
</thumb>
</nicovideo_thumb_response>`, id, title, length, thumb, owner)
}

const deletedDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<nicovideo_thumb_response status="fail">
<error><code>DELETED</code><description>deleted</description></error>
</nicovideo_thumb_response>`

func dbOf(recs ...*VideoRecord) *Database {
	db := NewDatabase()
	for _, r := range recs {
		db.Add(r)
	}
	return db
}
