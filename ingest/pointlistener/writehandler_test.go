package pointlistener

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/martin2250/perfstream/ingest"
	"github.com/martin2250/perfstream/pkg/influx"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/sirupsen/logrus/hooks/test"
)

func newHandler(h WriteHandler) (*httptest.Server, ingest.PointFifo) {
	log, _ := test.NewNullLogger()
	fifo := ingest.NewPointFifo()
	h.Sink = fifo
	h.Log = log
	return httptest.NewServer(h), fifo
}

func TestWriteRoundTrip(t *testing.T) {
	srv, fifo := newHandler(WriteHandler{})
	defer srv.Close()

	points := []lineprotocol.Point{
		{
			Measurement: "cpu usage",
			Tags:        map[string]string{"name": "vm 1,a=b", "host": "esx1"},
			Fields:      map[string]float64{"ready": 12.5},
			Time:        1600000000,
		},
		{
			Measurement: "memory",
			Tags:        map[string]string{"name": "vm2"},
			Fields:      map[string]float64{"used": 1024, "granted": 2048},
			Time:        1600000020,
		},
	}

	w := influx.Writer{Address: srv.URL}
	if err := w.Send("vsphere", points).Err(); err != nil {
		t.Fatal(err)
	}

	for i, want := range points {
		got, err := fifo.GetPoint()
		if err != nil {
			t.Fatalf("point %d missing", i)
		}
		if got.Database != "vsphere" {
			t.Errorf("database = %s", got.Database)
		}
		if got.String() != want.String() {
			t.Errorf("got %s, want %s", got.String(), want.String())
		}
	}
}

func TestWritePartial(t *testing.T) {
	srv, fifo := newHandler(WriteHandler{})
	defer srv.Close()

	body := "cpu,name=vm1 usage=1 1\ngarbage\n\ncpu,name=vm2 usage=2 2\n"
	resp, err := http.Post(srv.URL+"/write?db=vsphere", "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status code %d", resp.StatusCode)
	}
	if fifo.Len() != 2 {
		t.Errorf("valid lines should be stored, got %d", fifo.Len())
	}
}

func TestWriteErrors(t *testing.T) {
	points := []lineprotocol.Point{{Measurement: "cpu", Fields: map[string]float64{"v": 1}, Time: 1}}

	t.Run("missing database", func(t *testing.T) {
		srv, _ := newHandler(WriteHandler{})
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/write", "text/plain", strings.NewReader("cpu v=1 1\n"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status code %d", resp.StatusCode)
		}
	})

	t.Run("method", func(t *testing.T) {
		srv, _ := newHandler(WriteHandler{})
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/write?db=vsphere")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status code %d", resp.StatusCode)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		srv, fifo := newHandler(WriteHandler{Reject: http.StatusServiceUnavailable})
		defer srv.Close()

		err := (&influx.Writer{Address: srv.URL}).Send("vsphere", points).Err()

		var re *influx.ResponseError
		if !errors.As(err, &re) {
			t.Fatalf("expected ResponseError, got %v", err)
		}
		if re.StatusCode != http.StatusServiceUnavailable || !strings.Contains(re.Body, "write rejected") {
			t.Errorf("error = %d %s", re.StatusCode, re.Body)
		}
		if fifo.Len() != 0 {
			t.Error("rejected points should not be stored")
		}
	})

	t.Run("authentication", func(t *testing.T) {
		srv, fifo := newHandler(WriteHandler{Username: "perf", Password: "secret"})
		defer srv.Close()

		err := (&influx.Writer{Address: srv.URL, Username: "perf", Password: "wrong"}).Send("vsphere", points).Err()

		var re *influx.ResponseError
		if !errors.As(err, &re) || re.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", err)
		}

		err = (&influx.Writer{Address: srv.URL, Username: "perf", Password: "secret"}).Send("vsphere", points).Err()
		if err != nil {
			t.Fatal(err)
		}
		if fifo.Len() != 1 {
			t.Errorf("got %d points", fifo.Len())
		}
	})
}

func TestWriteChanSink(t *testing.T) {
	log, _ := test.NewNullLogger()
	points := make(chan ingest.Point, 4)
	srv := httptest.NewServer(WriteHandler{Sink: ingest.ChanPointSink(points), Log: log})
	defer srv.Close()

	want := lineprotocol.Point{
		Measurement: "disk",
		Tags:        map[string]string{"path": `C:\`},
		Fields:      map[string]float64{"busy": 1},
		Time:        1600000000,
	}

	if err := (&influx.Writer{Address: srv.URL}).Send("vsphere", []lineprotocol.Point{want}).Err(); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-points:
		if got.Database != "vsphere" || got.Tags["path"] != `C:\` {
			t.Errorf("got %s in %s", got.String(), got.Database)
		}
	default:
		t.Fatal("point should be passed to the channel")
	}
}
