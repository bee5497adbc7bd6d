// Package influx writes line protocol batches to an InfluxDB compatible HTTP endpoint
package influx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/martin2250/perfstream/pkg/lineprotocol"
)

// DefaultTimeout bounds a single write when the writer has no timeout set
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept
const maxErrorBody = 64 * 1024

// ResponseError is returned when the sink answers with a non-2xx status
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("sink returned status code %d", e.StatusCode)
}

// Writer sends batches to <Address>/write. Each call to Send performs
// exactly one request, retrying is up to the caller.
type Writer struct {
	Address    string
	HttpClient *http.Client

	Username string
	Password string

	// Precision of the point timestamps, defaults to seconds
	Precision string
	Timeout   time.Duration
}

// Send starts writing the batch in the background and returns immediately
func (w *Writer) Send(database string, batch []lineprotocol.Point) *Pending {
	p := NewPending(len(batch))
	body := lineprotocol.Encode(batch)

	go func() {
		p.Complete(w.write(database, body))
	}()

	return p
}

func (w *Writer) writeURL(database string) (string, error) {
	u, err := url.Parse(w.Address)
	if err != nil {
		return "", err
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/write"

	precision := w.Precision
	if precision == "" {
		precision = "s"
	}

	q := u.Query()
	q.Set("db", database)
	q.Set("precision", precision)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (w *Writer) write(database string, body []byte) error {
	address, err := w.writeURL(database)
	if err != nil {
		return err
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if w.Username != "" {
		req.SetBasicAuth(w.Username, w.Password)
	}

	client := w.HttpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
