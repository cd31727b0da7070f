package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/askdex/internal/domain/record"
)

// indexRebuilder is implemented by stores with a secondary search index.
type indexRebuilder interface {
	RebuildIndex(ctx context.Context) error
}

func newSeedCmd(g *globalFlags) *cobra.Command {
	var (
		file    string
		reindex bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load findings from a JSON file into the record store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			records, err := readRecords(in)
			if err != nil {
				return err
			}

			a, err := g.build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Records.Put(cmd.Context(), records...); err != nil {
				return fmt.Errorf("store records: %w", err)
			}
			if ri, ok := a.Records.(indexRebuilder); ok && reindex {
				if err := ri.RebuildIndex(cmd.Context()); err != nil {
					return fmt.Errorf("rebuild index: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d findings\n", len(records))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON array of findings (- for stdin)")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "rebuild the Redis search index after loading")
	return cmd
}

// readRecords decodes a JSON array of findings. Records without an id get a
// generated one; every record must pass validation.
func readRecords(r io.Reader) ([]record.Record, error) {
	var records []record.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
	}
	return records, nil
}
