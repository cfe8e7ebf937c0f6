package nico

import "strings"

// Endpoints are the site URLs used by the tool. Tests point them at local
// servers.
type Endpoints struct {
	Info        string // + content ID
	Watch       string // + content ID
	GetFlv      string // + working ID
	ThreadKey   string // ?thread=
	MessageJSON string
	Login       string
	MyPage      string // page carrying the mutation token
	API         string // mylist API root, ends with "/"
}

// DefaultEndpoints returns the production URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Info:        "http://ext.nicovideo.jp/api/getthumbinfo/",
		Watch:       "http://www.nicovideo.jp/watch/",
		GetFlv:      "http://flapi.nicovideo.jp/api/getflv/",
		ThreadKey:   "http://flapi.nicovideo.jp/api/getthreadkey",
		MessageJSON: "http://nmsg.nicovideo.jp/api.json/",
		Login:       "https://secure.nicovideo.jp/secure/login?site=niconico",
		MyPage:      "http://www.nicovideo.jp/my/mylist",
		API:         "http://www.nicovideo.jp/api/",
	}
}

// LocalEndpoints maps every endpoint onto base, using the production paths.
func LocalEndpoints(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		Info:        base + "/api/getthumbinfo/",
		Watch:       base + "/watch/",
		GetFlv:      base + "/api/getflv/",
		ThreadKey:   base + "/api/getthreadkey",
		MessageJSON: base + "/api.json/",
		Login:       base + "/secure/login?site=niconico",
		MyPage:      base + "/my/mylist",
		API:         base + "/api/",
	}
}
