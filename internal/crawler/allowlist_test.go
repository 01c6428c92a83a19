package crawler

import "testing"

func TestDomainAllowlist(t *testing.T) {
	t.Run("exact match admits www variant", func(t *testing.T) {
		al := NewDomainAllowlist([]string{"zoomit.ir"})
		if al == nil {
			t.Fatalf("expected allowlist to be created")
		}
		if !al.AllowsHost("zoomit.ir") || !al.AllowsHost("www.zoomit.ir") {
			t.Fatalf("expected apex and www hosts to be allowed")
		}
		if al.AllowsHost("static.zoomit.ir") {
			t.Fatalf("did not expect other subdomains to match exact entry")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		al := NewDomainAllowlist([]string{"*.example.org"})
		cases := []struct {
			host    string
			allowed bool
		}{
			{"example.org", true},
			{"news.example.org", true},
			{"EXAMPLE.ORG", true},
			{"example.com", false},
			{"", false},
		}
		for _, tc := range cases {
			if got := al.AllowsHost(tc.host); got != tc.allowed {
				t.Fatalf("host %q allowed=%v, want %v", tc.host, got, tc.allowed)
			}
		}
	})

	t.Run("urls", func(t *testing.T) {
		al := NewDomainAllowlist([]string{"zoomit.ir"})
		if !al.AllowsURL("https://www.zoomit.ir/archive/?pageNumber=1") {
			t.Fatalf("expected archive url to be allowed")
		}
		if al.AllowsURL("https://ads.other.com/x") {
			t.Fatalf("expected foreign host to be dropped")
		}
		if al.AllowsURL("mailto:news@zoomit.ir") {
			t.Fatalf("expected non-http scheme to be dropped")
		}
	})

	t.Run("nil allowlist admits all", func(t *testing.T) {
		var al *DomainAllowlist
		if NewDomainAllowlist([]string{" ", ""}) != nil {
			t.Fatalf("expected blank patterns to yield nil allowlist")
		}
		if !al.AllowsHost("anything.test") {
			t.Fatalf("nil allowlist should admit every host")
		}
	})
}
