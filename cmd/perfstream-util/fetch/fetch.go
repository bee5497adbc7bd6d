package fetch

import (
	"context"
	"io"

	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/source/registry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var fetchflags = struct {
	source string
	label  string
	set    string
	chunk  int
}{}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one set once and print it as line protocol",
		Long: `
This command opens a session to a source, reads all objects of
one performance set and writes the points to stdout without
sending them anywhere.`,
		RunE: run,
	}

	cmd.InitDefaultHelpCmd()

	cmd.Flags().StringVarP(&fetchflags.source, "source", "s", "host", "source type")
	cmd.Flags().StringVarP(&fetchflags.label, "label", "l", "", "source label")
	cmd.Flags().StringVarP(&fetchflags.set, "set", "t", "", "set type")
	cmd.Flags().IntVarP(&fetchflags.chunk, "chunk", "c", perfset.DefaultChunkSize, "objects per query")
	cmd.MarkFlagRequired("set")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	srcConf := map[string]string{"type": fetchflags.source}
	if fetchflags.label != "" {
		srcConf["label"] = fetchflags.label
	}

	var srcNode, setNode yaml.Node
	if err := srcNode.Encode(srcConf); err != nil {
		return err
	}
	if err := setNode.Encode(map[string]string{"type": fetchflags.set}); err != nil {
		return err
	}

	src, err := registry.Load(srcNode)
	if err != nil {
		return err
	}

	set, err := perfset.Load(setNode)
	if err != nil {
		return err
	}

	return Fetch(cmd.Context(), src, set, fetchflags.chunk, cmd.OutOrStdout())
}

// Fetch reads all objects of a set once and writes them to w
func Fetch(ctx context.Context, src source.Source, set perfset.PerformanceSet, chunk int, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logrus.WithFields(logrus.Fields{"source": src.Name(), "set": set.MeasurementName()})

	session, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	tags, err := set.FetchObjectTags(ctx, session)
	if err != nil {
		return err
	}

	r := perfset.Fetch(ctx, set, session, perfset.Instances(tags), chunk)
	lines := 0

	for r.Next() {
		points, errs := perfset.Transform(set.MeasurementName(), r.Chunk(), tags)
		for _, err := range errs {
			log.WithError(err).Warning("Dropping record")
		}

		if _, err := w.Write(lineprotocol.Encode(points)); err != nil {
			return err
		}
		lines += len(points)
	}

	if err := r.Err(); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"lines": lines, "queries": r.Queries()}).Info("Fetched set")

	return nil
}
