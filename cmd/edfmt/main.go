// Command edfmt is a minimal demonstration collaborator (spec §1, §5
// Non-goals: "not a product CLI") that opens a buffer, compiles a grammar,
// and prints its capture tree or exported bytecode — exercising the
// Buffer API and HighlightDriver from outside the core, the way the
// teacher's cmd/lci/main.go drives its indexer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/edcore/internal/buffer"
	"github.com/standardbeagle/edcore/internal/debug"
	"github.com/standardbeagle/edcore/internal/highlight"
	"github.com/standardbeagle/edcore/internal/parser"
	"github.com/standardbeagle/edcore/internal/version"
)

func loadLanguage(grammarPath, name string) (*parser.Language, error) {
	src, err := os.ReadFile(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("reading grammar %s: %w", grammarPath, err)
	}
	return parser.NewLanguage(name, src)
}

func printCaptureTree(w *os.File, n *parser.CaptureNode, depth int) {
	if n == nil {
		return
	}
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	tag := ""
	if n.Attrs != nil && n.Attrs.Highlight {
		tag = " highlight=" + n.Attrs.HighlightTag
	}
	fmt.Fprintf(w, "%s [%d,%d)%s\n", n.Rule, n.Start, n.End, tag)
	for _, c := range n.Children {
		printCaptureTree(w, c, depth+1)
	}
}

func highlightAction(c *cli.Context) error {
	lang, err := loadLanguage(c.String("grammar"), c.String("lang"))
	if err != nil {
		return err
	}
	b, err := buffer.Open(c.String("file"))
	if err != nil {
		return err
	}

	if c.Bool("quiet") {
		debug.SetQuietMode(true)
	}

	b.AttachHighlighting(lang, nil, nil, 0, 0)
	done := make(chan struct{})
	b.Highlighting().OnParsed(func(root *parser.CaptureNode) {
		close(done)
	})
	b.Highlighting().RequestReparse(context.Background())
	<-done

	root := b.Highlighting().Root()
	if c.Bool("json") {
		return json.NewEncoder(os.Stdout).Encode(root)
	}
	printCaptureTree(os.Stdout, root, 0)
	return nil
}

func completeAction(c *cli.Context) error {
	lang, err := loadLanguage(c.String("grammar"), c.String("lang"))
	if err != nil {
		return err
	}
	b, err := buffer.Open(c.String("file"))
	if err != nil {
		return err
	}
	root, err := lang.Parse(context.Background(), b.Bytes(), nil, nil)
	if err != nil {
		return err
	}
	results := highlight.RankCompletions(root, b.Bytes(), c.String("prefix"), c.Int("limit"))
	for _, r := range results {
		fmt.Printf("%s\t%.3f\n", r.Text, r.Similarity)
	}
	return nil
}

func dumpBytecodeAction(c *cli.Context) error {
	lang, err := loadLanguage(c.String("grammar"), c.String("lang"))
	if err != nil {
		return err
	}
	exported := parser.ExportProgram(lang.Program)
	if c.Bool("validate") {
		if err := parser.ValidateExportedProgram(exported); err != nil {
			return fmt.Errorf("exported program failed schema validation: %w", err)
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(exported)
}

func main() {
	app := &cli.App{
		Name:    "edfmt",
		Usage:   "demo CLI exercising the edcore buffer and parser core",
		Version: version.Info(),
		Commands: []*cli.Command{
			{
				Name:  "highlight",
				Usage: "parse a file with a grammar and print its capture tree",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "grammar", Aliases: []string{"g"}, Required: true, Usage: "path to a .peg grammar file"},
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Value: "default", Usage: "language name to register the grammar under"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "file to parse"},
					&cli.BoolFlag{Name: "json", Usage: "print the capture tree as JSON instead of indented text"},
					&cli.BoolFlag{Name: "quiet", Usage: "suppress debug logging even if EDCORE_DEBUG is set"},
				},
				Action: highlightAction,
			},
			{
				Name:  "complete",
				Usage: "rank @completion captures against a prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "grammar", Aliases: []string{"g"}, Required: true},
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Value: "default"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
					&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Required: true},
					&cli.IntFlag{Name: "limit", Value: 10},
				},
				Action: completeAction,
			},
			{
				Name:  "dump-bytecode",
				Usage: "compile a grammar and print its exported bytecode as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "grammar", Aliases: []string{"g"}, Required: true},
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Value: "default"},
					&cli.BoolFlag{Name: "validate", Usage: "validate the export against the published JSON schema before printing"},
				},
				Action: dumpBytecodeAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "edfmt:", err)
		os.Exit(1)
	}
}
