package http

import "testing"

func TestProxySubdomain(t *testing.T) {
	h := NewProxyHandler(nil, ".apps.local.", nil)
	cases := map[string]string{
		"web.apps.local":     "web",
		"WEB.Apps.Local":     "web",
		"apps.local":         "",
		"www.apps.local":     "",
		"a.b.apps.local":     "",
		"web.other.local":    "",
		"localhost":          "",
		"web.apps.local.com": "",
	}
	for host, want := range cases {
		got, ok := h.subdomain(host)
		if got != want || ok != (want != "") {
			t.Errorf("subdomain(%q) = (%q, %v), want %q", host, got, ok, want)
		}
	}

	if _, ok := NewProxyHandler(nil, "", nil).subdomain("web.apps.local"); ok {
		t.Error("proxy without a domain should match nothing")
	}
}
