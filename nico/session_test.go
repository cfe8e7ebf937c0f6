package nico

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const myPage = `<html><head>
<script src="/lib.js"></script>
<script type="text/javascript">
	var Globals = {};
	NicoAPI.token = "12345-1400000000-0123abcd";
</script>
</head><body></body></html>`

func loginSite(t *testing.T) *fakeSite {
	site := newFakeSite(t)
	site.mux.HandleFunc("/secure/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s", r.Method)
		}
		r.ParseForm()
		if r.PostForm.Get("mail_tel") == "user@example.com" && r.PostForm.Get("password") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "user_session_1_abc", Path: "/"})
		}
		w.Write([]byte("ok"))
	})
	site.mux.HandleFunc("/my/mylist", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(sessionCookie); err != nil {
			w.Write([]byte("<html>please log in</html>"))
			return
		}
		w.Write([]byte(myPage))
	})
	return site
}

func loginOptions(site *fakeSite) LoginOptions {
	return LoginOptions{
		Mail:      "user@example.com",
		Password:  "secret",
		NeedToken: true,
		HTTP:      testHTTPConfig(),
		Endpoints: site.ep,
		Logger:    zerolog.Nop(),
	}
}

func TestLoginWithCredentials(t *testing.T) {
	site := loginSite(t)

	s, err := Login(context.Background(), loginOptions(site))
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	defer s.Close()
	if s.Token != "12345-1400000000-0123abcd" {
		t.Errorf("Token = %q", s.Token)
	}
}

func TestLoginRejected(t *testing.T) {
	site := loginSite(t)
	opts := loginOptions(site)
	opts.Password = "wrong"

	if _, err := Login(context.Background(), opts); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Login() error = %v, want ErrLoginFailed", err)
	}
}

func TestLoginWithoutAnything(t *testing.T) {
	site := loginSite(t)
	opts := loginOptions(site)
	opts.Mail, opts.Password = "", ""

	if _, err := Login(context.Background(), opts); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("Login() error = %v, want ErrLoginFailed", err)
	}
}

func TestLoginReusesCookieFile(t *testing.T) {
	site := loginSite(t)
	cookieFile := filepath.Join(t.TempDir(), "cookies.json")

	opts := loginOptions(site)
	opts.CookieFile = cookieFile
	s, err := Login(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Login() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	opts.Mail, opts.Password = "", ""
	s, err = Login(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	defer s.Close()
	if s.Token == "" {
		t.Error("token not fetched with stored cookie")
	}
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken([]byte(myPage))
	if err != nil {
		t.Fatalf("ExtractToken() error = %v", err)
	}
	if token != "12345-1400000000-0123abcd" {
		t.Errorf("token = %q", token)
	}

	if _, err := ExtractToken([]byte("<html>please log in</html>")); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("missing token error = %v, want ErrTokenNotFound", err)
	}
}
