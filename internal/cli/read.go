package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geraldbahati/unbowed/internal/chunker"
	"github.com/geraldbahati/unbowed/internal/config"
	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/pipeline"
	"github.com/spf13/cobra"
)

type chunkFlags struct {
	chars   int
	overlap int
	mime    string
}

// register leaves the defaults unset: the environment is only complete once
// the root command has loaded the dotenv file.
func (f *chunkFlags) register(cmd *cobra.Command, env string) {
	cmd.Flags().IntVarP(&f.chars, "chunk-chars", "c", 0, "maximum chunk length (default $"+env+"_CHARS)")
	cmd.Flags().IntVarP(&f.overlap, "overlap", "o", 0, "length shared by consecutive chunks (default $"+env+"_OVERLAP)")
}

// config fills every flag not given on the command line from def.
func (f *chunkFlags) config(cmd *cobra.Command, def chunker.Config) chunker.Config {
	cfg := def
	if cmd.Flags().Changed("chunk-chars") {
		cfg.ChunkChars = f.chars
	}
	if cmd.Flags().Changed("overlap") {
		cfg.Overlap = f.overlap
	}
	return cfg
}

// output is what read and batch print.
type output struct {
	Documents []docOutput          `json:"documents"`
	Chunks    []pipeline.ChunkView `json:"chunks"`
}

type docOutput struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

func ReadCmd(root *rootOptions) *cobra.Command {
	flags := &chunkFlags{}
	cmd := &cobra.Command{
		Use:   "read <file>...",
		Short: "Chunk each file on its own",
		Long: `Chunks every file separately, choosing the extractor from its suffix.
Chunk names carry the document name and the pages, slides or lines they span.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := newReader(root)
			if err != nil {
				return err
			}
			def := config.Load()
			cfg := flags.config(cmd, chunker.Config{ChunkChars: def.ChunkChars, Overlap: def.ChunkOverlap})
			results, err := reader.ReadAll(uploadsFor(args, ""), cfg)
			if err != nil {
				return err
			}
			return printResults(cmd, results, nil)
		},
	}
	flags.register(cmd, "CHUNK")
	return cmd
}

func BatchCmd(root *rootOptions) *cobra.Command {
	flags := &chunkFlags{}
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Concatenate files and chunk them together",
		Long: `Extracts every file by MIME type, joins the text in argument order and
chunks the result once. Chunks are named "batch chunk N".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := newReader(root)
			if err != nil {
				return err
			}
			def := config.Load()
			cfg := flags.config(cmd, chunker.Config{ChunkChars: def.BatchChunkChars, Overlap: def.BatchChunkOverlap})
			res, err := reader.Batch(uploadsFor(args, flags.mime), cfg)
			if err != nil {
				return err
			}
			return printResults(cmd, res.Results, res.Chunks)
		},
	}
	flags.register(cmd, "BATCH_CHUNK")
	cmd.Flags().StringVar(&flags.mime, "mime", "", "MIME type for every file; sniffed when empty")
	return cmd
}

func newReader(root *rootOptions) (*pipeline.Reader, error) {
	cfg := config.Load()
	opts, err := pipeline.OptionsFromConfig(cfg, nil, root.log)
	if err != nil {
		return nil, err
	}
	return pipeline.NewReader(root.log, opts), nil
}

func uploadsFor(paths []string, mime string) []pipeline.Upload {
	uploads := make([]pipeline.Upload, 0, len(paths))
	for _, p := range paths {
		doc := document.New(p, "")
		doc.MIMEType = mime
		uploads = append(uploads, pipeline.Upload{Doc: doc})
	}
	return uploads
}

// printResults writes the chunks as JSON. Chunks default to those carried
// by the results. An error is returned when every document failed.
func printResults(cmd *cobra.Command, results []pipeline.Result, chunks []document.Chunk) error {
	out := output{Documents: make([]docOutput, 0, len(results))}
	failed := 0
	for _, r := range results {
		d := docOutput{Name: r.Doc.Name, Chunks: len(r.Chunks)}
		if r.Failed() {
			failed++
			d.Error = r.Err.Error()
		}
		out.Documents = append(out.Documents, d)
	}
	if chunks == nil {
		for _, r := range results {
			chunks = append(chunks, r.Chunks...)
		}
	}
	out.Chunks = pipeline.Views(chunks)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if failed > 0 && failed == len(results) {
		return errors.New("no document could be read")
	}
	return nil
}
