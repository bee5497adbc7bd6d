package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/martin2250/perfstream/streamer"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRouterProfiles(t *testing.T) {
	log, _ := test.NewNullLogger()
	srv := httptest.NewServer(newRouter(streamer.NewManager(log)))
	defer srv.Close()

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap", "/status"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status code %d", path, resp.StatusCode)
		}
	}

	// Index answers unknown profiles with 404, trace is not a named profile
	resp, err := http.Get(srv.URL + "/debug/pprof/trace?seconds=0.01")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("trace: status code %d", resp.StatusCode)
	}
}
