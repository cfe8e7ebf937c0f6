package nico

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestParseFlv(t *testing.T) {
	body := "thread_id=1173108780&l=319&url=http%3A%2F%2Fsmile%2Fsmile%3Fm%3D9.0&ms=http%3A%2F%2Fmsg%2Fapi%2F" +
		"&user_id=42&is_premium=1&nickname=nick&userkey=uk&optional_thread_id=555&needs_key=1\n"

	p, err := ParseFlv(body)
	if err != nil {
		t.Fatalf("ParseFlv() error = %v", err)
	}
	want := FlvParams{
		ThreadID:         "1173108780",
		Length:           "319",
		VideoURL:         "http://smile/smile?m=9.0",
		MessageServer:    "http://msg/api/",
		UserID:           "42",
		IsPremium:        true,
		Nickname:         "nick",
		UserKey:          "uk",
		OptionalThreadID: "555",
		NeedsKey:         "1",
	}
	if *p != want {
		t.Errorf("ParseFlv() = %+v, want %+v", *p, want)
	}
}

func TestParseFlvErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"access locked", "error=access_locked&done=true", ErrAccessLocked},
		{"any error key", "error=invalid_v1", ErrAccessLocked},
		{"missing url", "thread_id=1&ms=x&user_id=2", ErrMalformedResponse},
		{"bad encoding", "thread_id=%zz", ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFlv(tt.body); !errors.Is(err, tt.want) {
				t.Errorf("ParseFlv() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchFlvAddsAS3ForNM(t *testing.T) {
	site := newFakeSite(t)
	var query string
	site.mux.HandleFunc("/api/getflv/", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte("thread_id=1&url=u&ms=m&user_id=2"))
	})
	client := site.session().Client

	if _, err := fetchFlv(context.Background(), client, site.ep, "nm2829323"); err != nil {
		t.Fatal(err)
	}
	if query != "as3=1" {
		t.Errorf("nm query = %q, want as3=1", query)
	}
	if _, err := fetchFlv(context.Background(), client, site.ep, "sm9"); err != nil {
		t.Fatal(err)
	}
	if query != "" {
		t.Errorf("sm query = %q, want none", query)
	}
}

func TestFetchThreadKey(t *testing.T) {
	site := newFakeSite(t)
	calls := 0
	site.mux.HandleFunc("/api/getthreadkey", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("thread") != "555" {
			t.Errorf("thread = %q", r.URL.Query().Get("thread"))
		}
		w.Write([]byte("threadkey=abc&force_184=1"))
	})
	client := site.session().Client

	key, force, err := fetchThreadKey(context.Background(), client, site.ep, "555", "0")
	if err != nil || key != "" || force != "0" || calls != 0 {
		t.Errorf("no key needed: %q %q %v calls=%d", key, force, err, calls)
	}

	key, force, err = fetchThreadKey(context.Background(), client, site.ep, "555", "1")
	if err != nil {
		t.Fatal(err)
	}
	if key != "abc" || force != "1" {
		t.Errorf("fetchThreadKey() = %q, %q", key, force)
	}
}
