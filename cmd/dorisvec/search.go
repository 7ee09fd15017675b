package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	dorisvec "github.com/hugr-lab/doris-vector-go"
	"github.com/hugr-lab/doris-vector-go/executor"
)

// queryFlags are shared by search and batch.
type queryFlags struct {
	columns      []string
	limit        int64
	where        string
	metric       string
	vectorColumn string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.columns, "select", nil, "Columns to return (default all)")
	cmd.Flags().Int64Var(&f.limit, "limit", 10, "Maximum rows per search, -1 for no limit")
	cmd.Flags().StringVar(&f.where, "where", "", "SQL predicate applied before ranking")
	cmd.Flags().StringVar(&f.metric, "metric", "", "Distance metric: l2 or inner_product")
	cmd.Flags().StringVar(&f.vectorColumn, "vector-column", "", "Column holding stored embeddings")
}

func (f *queryFlags) apply(q dorisvec.Query) dorisvec.Query {
	if len(f.columns) > 0 {
		q = q.Select(f.columns...)
	}
	if f.limit != executor.Unlimited {
		q = q.Limit(f.limit)
	}
	if f.where != "" {
		q = q.Where(f.where)
	}
	if f.metric != "" {
		q = q.Metric(executor.Metric(f.metric))
	}
	if f.vectorColumn != "" {
		q = q.VectorColumn(f.vectorColumn)
	}
	return q
}

func searchCmd() *cobra.Command {
	var (
		flags  queryFlags
		vector string
	)
	cmd := &cobra.Command{
		Use:   "search <table>",
		Short: "Run one nearest-neighbour search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(vector)
			if err != nil {
				return err
			}

			cfg, format, err := loadFromFlags(cmd)
			if err != nil {
				return err
			}
			client, err := openClient(cfg, cfg.logger())
			if err != nil {
				return err
			}
			defer client.Close()

			q := flags.apply(client.OpenTable(args[0]).Search(vec))
			tbl, err := q.ToArrow(cmd.Context())
			if err != nil {
				return err
			}
			defer tbl.Release()

			return writeTable(cmd.OutOrStdout(), format, tbl)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&vector, "vector", "", "Target vector, comma separated or a JSON array")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		flags       queryFlags
		file        string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch <table>",
		Short: "Run one search per input line concurrently",
		Long: "Reads one vector per line (JSON array or comma separated) from --file, " +
			"or stdin when --file is \"-\", and prints results in input order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open vectors file: %w", err)
				}
				defer f.Close()
				in = f
			}
			inputs, err := readVectors(in)
			if err != nil {
				return err
			}

			cfg, format, err := loadFromFlags(cmd)
			if err != nil {
				return err
			}
			client, err := openClient(cfg, cfg.logger())
			if err != nil {
				return err
			}
			defer client.Close()

			tables := make([]arrow.Table, len(inputs))
			defer func() {
				for _, tbl := range tables {
					if tbl != nil {
						tbl.Release()
					}
				}
			}()

			handle := client.OpenTable(args[0])
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i, input := range inputs {
				g.Go(func() error {
					tbl, err := flags.apply(handle.Search(input.vector)).ToArrow(ctx)
					if err != nil {
						return fmt.Errorf("line %d: %w", input.line, err)
					}
					tables[i] = tbl
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, tbl := range tables {
				if format == formatText {
					fmt.Fprintf(out, "# line %d\n", inputs[i].line)
				}
				if err := writeTable(out, format, tbl); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "-", "File with one vector per line, - for stdin")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of searches in flight")
	return cmd
}

// parseVector accepts "0.1,0.2" or "[0.1, 0.2]".
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("vector is empty")
	}

	if strings.HasPrefix(s, "[") {
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			return nil, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		return vec, nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// inputVector is a vector read from a batch input, with its source line.
type inputVector struct {
	line   int
	vector []float32
}

// readVectors parses one vector per non-blank, non-comment line.
func readVectors(r io.Reader) ([]inputVector, error) {
	var vectors []inputVector
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		vec, err := parseVector(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vectors = append(vectors, inputVector{line: line, vector: vec})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no vectors in input")
	}
	return vectors, nil
}
