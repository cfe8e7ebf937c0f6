package nico

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	httpclient "nicotools/http"
)

// sessionCookie is set by the site once a login succeeds.
const sessionCookie = "user_session"

// Session is an authenticated connection to the site. It is created once per
// invocation and shared by every component that needs the account.
type Session struct {
	Client    *httpclient.Client
	Endpoints Endpoints
	// Token authorises mylist mutations. Empty unless requested at login.
	Token string

	manager *httpclient.SessionManager
	log     zerolog.Logger
}

// LoginOptions configures Login.
type LoginOptions struct {
	Mail     string
	Password string

	// CookieFile persists the cookie jar across runs when set.
	CookieFile string
	// NetscapeCookies is a browser-exported cookies.txt.
	NetscapeCookies string

	// NeedToken fetches the mylist mutation token after logging in.
	NeedToken bool

	HTTP      *httpclient.Config
	Endpoints Endpoints
	Logger    zerolog.Logger
}

// Login returns an authenticated session. With credentials it posts them to
// the login endpoint; without, it relies on a session cookie loaded from
// CookieFile or NetscapeCookies.
func Login(ctx context.Context, opts LoginOptions) (*Session, error) {
	manager, err := httpclient.NewSessionManager(httpclient.SessionConfig{
		PersistCookies: opts.CookieFile != "",
		CookieFile:     opts.CookieFile,
		NetscapeFile:   opts.NetscapeCookies,
		CookieURLs:     cookieOrigins(opts.Endpoints),
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		Client:    manager.GetClient(opts.HTTP),
		Endpoints: opts.Endpoints,
		manager:   manager,
		log:       opts.Logger,
	}

	switch {
	case opts.Mail != "" && opts.Password != "":
		if err := s.login(ctx, opts.Mail, opts.Password); err != nil {
			return nil, err
		}
	case s.loggedIn():
		s.log.Debug().Msg("reusing stored session cookie")
	default:
		return nil, fmt.Errorf("%w: no credentials and no stored session", ErrLoginFailed)
	}

	if opts.NeedToken {
		token, err := s.fetchToken(ctx)
		if err != nil {
			return nil, err
		}
		s.Token = token
	}
	return s, nil
}

func (s *Session) login(ctx context.Context, mail, password string) error {
	s.log.Info().Str("mail", mail).Msg("logging in")

	form := url.Values{
		"mail_tel": {mail},
		"password": {password},
	}
	if _, err := s.Client.PostForm(ctx, s.Endpoints.Login, form); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !s.loggedIn() {
		return fmt.Errorf("%w: check the mail address and password", ErrLoginFailed)
	}
	s.log.Info().Msg("logged in")
	return nil
}

func (s *Session) loggedIn() bool {
	ck, ok := s.Client.Cookie(s.Endpoints.MyPage, sessionCookie)
	return ok && ck.Value != "" && ck.Value != "deleted"
}

var tokenPattern = regexp.MustCompile(`NicoAPI\.token\s*=\s*["']([-\w.]+)["']`)

// fetchToken scrapes the mutation token from the account's mylist page.
func (s *Session) fetchToken(ctx context.Context) (string, error) {
	resp, err := s.Client.Get(ctx, s.Endpoints.MyPage)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenNotFound, err)
	}
	token, err := ExtractToken(resp.Body)
	if err != nil {
		return "", err
	}
	s.log.Debug().Msg("mylist token acquired")
	return token, nil
}

// ExtractToken finds the mutation token in the inline scripts of a page.
func ExtractToken(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenNotFound, err)
	}

	var token string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if m := tokenPattern.FindStringSubmatch(sel.Text()); m != nil {
			token = m[1]
			return false
		}
		return true
	})
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Close persists cookies when a cookie file was configured.
func (s *Session) Close() error {
	if s.manager == nil {
		return nil
	}
	return s.manager.Close()
}

// cookieOrigins lists the origins whose cookies are worth persisting.
func cookieOrigins(ep Endpoints) []string {
	var out []string
	seen := map[string]bool{}
	for _, raw := range []string{ep.MyPage, ep.Login, ep.GetFlv, ep.MessageJSON, ep.Watch} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host + "/"
		if !seen[origin] {
			seen[origin] = true
			out = append(out, origin)
		}
	}
	return out
}
