package pointlistener

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/martin2250/perfstream/ingest"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/sirupsen/logrus"
)

// WriteHandler mimics the /write endpoint of InfluxDB and stores incoming points to a point sink
type WriteHandler struct {
	Sink ingest.PointSink
	Log  logrus.FieldLogger

	// Username and Password are checked when set
	Username string
	Password string
	// Reject answers every write with this status code when non-zero
	Reject int
}

// ServeHTTP processes a POST request with line protocol data.
// Valid lines are stored even when others fail to parse, like InfluxDB does.
func (h WriteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != h.Username || pass != h.Password {
			http.Error(w, `{"error":"authorization failed"}`, http.StatusUnauthorized)
			return
		}
	}

	database := r.URL.Query().Get("db")
	if database == "" {
		http.Error(w, `{"error":"database is required"}`, http.StatusBadRequest)
		return
	}

	if h.Reject != 0 {
		http.Error(w, `{"error":"write rejected"}`, h.Reject)
		return
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 4096), lineprotocol.MaxLineLength)

	var failed []string
	count := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		point, err := lineprotocol.Parse(line)
		if err != nil {
			failed = append(failed, fmt.Sprintf("unable to parse '%s': %s", line, err))
			continue
		}

		h.Sink.AddPoint(ingest.Point{Database: database, Point: point})
		count++
	}

	if err := scanner.Err(); err != nil {
		log.WithError(err).Warning("Could not read request body")
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	log.WithFields(logrus.Fields{"database": database, "points": count, "failed": len(failed)}).Debug("Received write")

	if len(failed) > 0 {
		msg := "partial write: " + strings.Join(failed, "; ")
		http.Error(w, fmt.Sprintf(`{"error":%q}`, msg), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
