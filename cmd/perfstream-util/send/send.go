package send

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/martin2250/perfstream/pkg/influx"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/martin2250/perfstream/streamer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sendflags = struct {
	address  string
	database string
	username string
	password string
	input    string
	batch    int
}{}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a line protocol file to the sink",
		Long: `
This command reads points in line protocol format from a file
(or stdin when the input is -) and writes them to the sink in
batches, one batch at a time.`,
		RunE: run,
	}

	cmd.InitDefaultHelpCmd()

	cmd.Flags().StringVarP(&sendflags.address, "address", "a", "http://localhost:8086", "sink address")
	cmd.Flags().StringVarP(&sendflags.database, "database", "d", "", "database name")
	cmd.Flags().StringVarP(&sendflags.username, "username", "u", "", "sink username")
	cmd.Flags().StringVarP(&sendflags.password, "password", "p", "", "sink password")
	cmd.Flags().StringVarP(&sendflags.input, "input", "i", "-", "path to input file")
	cmd.Flags().IntVarP(&sendflags.batch, "batch", "b", streamer.ConfigDefault.MaxPendingLines, "lines per batch")
	cmd.MarkFlagRequired("database")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()

	if sendflags.input != "-" {
		f, err := os.Open(sendflags.input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	w := &influx.Writer{
		Address:  sendflags.address,
		Username: sendflags.username,
		Password: sendflags.password,
	}

	sent, err := Send(r, w, sendflags.database, sendflags.batch)
	logrus.WithField("lines", sent).Info("Done")

	return err
}

// Send parses r and sends it in batches of batchSize, waiting for each
// batch before sending the next. It stops at the first failed batch.
func Send(r io.Reader, sink streamer.Sink, database string, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, errors.New("batch size must be positive")
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), lineprotocol.MaxLineLength)

	sent := 0
	batch := make([]lineprotocol.Point, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.Send(database, batch).Err(); err != nil {
			var re *influx.ResponseError
			if errors.As(err, &re) && re.Body != "" {
				logrus.Error(re.Body)
			}
			return err
		}
		logrus.WithField("lines", len(batch)).Infof("Sent %d lines to InfluxDB", len(batch))
		sent += len(batch)
		batch = make([]lineprotocol.Point, 0, batchSize)
		return nil
	}

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p, err := lineprotocol.Parse(line)
		if err != nil {
			logrus.WithError(err).WithField("line", n).Warning("Skipping invalid line")
			continue
		}

		batch = append(batch, p)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return sent, err
	}

	return sent, flush()
}
