// languageoc is the compiler CLI of spec.md §6: source (or a
// directory of sources) in, one `.ll` file of LLVM IR text out.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/cache"
	cerrors "github.com/tangzhangming/nova/internal/errors"
	"github.com/tangzhangming/nova/internal/irgen"
	"github.com/tangzhangming/nova/internal/layout"
	"github.com/tangzhangming/nova/internal/logging"
	"github.com/tangzhangming/nova/internal/parser"
	"github.com/tangzhangming/nova/internal/pkgconfig"
	"github.com/tangzhangming/nova/internal/sema"
)

// defaultSample is compiled when no input path is given, per §6.
const defaultSample = `class Main is var result : Integer(42) end`

// sourceFileExt is the convention this CLI scans for when a positional
// argument names a directory instead of a single file.
const sourceFileExt = ".lo"

func main() {
	outputDir := flag.String("o", "", "output directory (default: next to input)")
	configPath := flag.String("config", "", "explicit languageo.toml path")
	noCache := flag.Bool("no-cache", false, "bypass the build cache")
	verbose := flag.Bool("verbose", false, "emit phase trace logging to stderr")
	dumpAST := flag.Bool("dump-ast", false, "write <stem>.ast.json")
	dumpModel := flag.Bool("dump-model", false, "write <stem>.model.json")
	dumpLayout := flag.Bool("dump-layout", false, "write <stem>.layout.json")
	flag.Parse()

	if !*verbose {
		cerrors.SetColorsEnabled(false)
	}
	logger := logging.New(*verbose)
	defer logger.Sync()

	inputs := flag.Args()
	stem := "output"
	var firstInputDir string
	var sources []namedSource
	var err error

	if len(inputs) == 0 {
		sources = []namedSource{{name: "<builtin>", content: defaultSample}}
	} else {
		sources, err = loadSources(inputs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "languageoc: %v\n", err)
			os.Exit(1)
		}
		stem = stemOf(inputs[0])
		firstInputDir = filepath.Dir(inputs[0])
	}

	cfgSearchPath := firstInputDir
	if cfgSearchPath == "" {
		cfgSearchPath, _ = os.Getwd()
	}
	cfg, err := loadConfig(*configPath, cfgSearchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: %v\n", err)
		os.Exit(1)
	}

	destDir := cfg.Build.OutputDir
	if *outputDir != "" {
		destDir = *outputDir
	}
	if destDir == "" {
		destDir = "."
	}
	if firstInputDir != "" && destDir == "." && cfg.Build.OutputDir == "." {
		destDir = firstInputDir
	}

	bc, err := cache.Open(filepath.Join(cfgSearchPath, cache.DefaultDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: %v\n", err)
		os.Exit(1)
	}
	if *noCache || !cfg.Build.Cache {
		bc.Disable()
	}

	var combined strings.Builder
	for _, s := range sources {
		combined.WriteString(s.content)
		combined.WriteByte('\n')
	}
	hash := cache.Hash([]byte(combined.String()))

	outPath := filepath.Join(destDir, stem+".ll")

	if entry, ok := bc.Get(hash); ok {
		if entry.ErrMessage != "" {
			fmt.Println(entry.ErrMessage)
			return
		}
		if err := os.WriteFile(outPath, []byte(entry.IRText), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "languageoc: writing %s: %v\n", outPath, err)
			os.Exit(1)
		}
		return
	}

	reporter := cerrors.NewReporter()
	for _, s := range sources {
		reporter.SetSource(s.name, s.content)
	}

	programs := make([]*ast.Program, 0, len(sources))
	var parseFailed bool
	for _, s := range sources {
		p := parser.New(s.content, s.name)
		prog := p.Parse()
		if p.HasErrors() {
			parseFailed = true
			for _, e := range p.Errors() {
				fmt.Fprintf(os.Stderr, "%s: %s\n", e.Pos, e.Message)
			}
			continue
		}
		programs = append(programs, prog)
	}
	if parseFailed {
		fmt.Println("Parse failed")
		bc.PutFailure(hash, "Parse failed")
		return
	}

	merged := ast.MergePrograms(programs...)
	if *dumpAST {
		writeJSONDump(filepath.Join(destDir, stem+".ast.json"), merged)
	}

	analyzer := sema.New(logger)
	model, semaErr := analyzer.Analyze(merged)
	if semaErr != nil {
		line := cerrors.PlainLine(semaErr)
		fmt.Println(line)
		if *verbose {
			fmt.Fprint(os.Stderr, reporter.Render(semaErr))
		}
		bc.PutFailure(hash, line)
		return
	}
	if *dumpModel {
		writeJSONDump(filepath.Join(destDir, stem+".model.json"), model)
	}

	prog, err := layout.Build(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: internal error building layout: %v\n", err)
		os.Exit(1)
	}
	if *dumpLayout {
		writeJSONDump(filepath.Join(destDir, stem+".layout.json"), dumpLayoutProgram(prog))
	}

	emitter := irgen.New(model, prog, logger)
	irText := emitter.EmitModule()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, []byte(irText), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: writing %s: %v\n", outPath, err)
		os.Exit(1)
	}
	bc.PutSuccess(hash, irText)
}

type namedSource struct {
	name    string
	content string
}

// loadSources reads every positional argument: a file is read as one
// source, a directory contributes every sourceFileExt file inside it
// (sorted, for a deterministic merge order).
func loadSources(inputs []string) ([]namedSource, error) {
	var out []namedSource
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", in, err)
		}
		if !info.IsDir() {
			data, err := os.ReadFile(in)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", in, err)
			}
			out = append(out, namedSource{name: in, content: string(data)})
			continue
		}

		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", in, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), sourceFileExt) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(in, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			out = append(out, namedSource{name: path, content: string(data)})
		}
	}
	return out, nil
}

func loadConfig(explicitPath, searchPath string) (*pkgconfig.Config, error) {
	if explicitPath != "" {
		return pkgconfig.Load(explicitPath)
	}
	return pkgconfig.LoadNearest(searchPath)
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeJSONDump(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: dumping %s: %v\n", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "languageoc: writing %s: %v\n", path, err)
	}
}

// layoutDump and classLayoutDump give -dump-layout an acyclic
// projection of layout.Program: ClassLayout's BaseLayout/Derived
// pointers form a cycle (a base's Derived list points back at every
// subclass, each of which points back at the base), which a direct
// json.Marshal of the real type would recurse into forever.
type layoutDump struct {
	Classes []classLayoutDump `json:"classes"`
	Entry   string            `json:"entry,omitempty"`
}

type classLayoutDump struct {
	Name    string            `json:"name"`
	ClassID int               `json:"classId"`
	Base    string            `json:"base,omitempty"`
	Fields  []fieldSlotDump   `json:"fields"`
	Methods []methodBindDump  `json:"methods"`
}

type fieldSlotDump struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type methodBindDump struct {
	Name           string `json:"name"`
	Params         string `json:"params"`
	DeclaringClass string `json:"declaringClass"`
}

func dumpLayoutProgram(prog *layout.Program) layoutDump {
	out := layoutDump{}
	if entry := prog.EntryClass(); entry != nil {
		out.Entry = entry.Name
	}
	for _, cl := range prog.Ordered {
		cd := classLayoutDump{Name: cl.Name, ClassID: cl.ClassID, Base: cl.Base}
		for _, f := range cl.Fields {
			cd.Fields = append(cd.Fields, fieldSlotDump{Name: f.Name, Type: f.Type.Name, Index: f.Index})
		}
		for k, b := range cl.Methods {
			cd.Methods = append(cd.Methods, methodBindDump{Name: k.Name, Params: k.Params, DeclaringClass: b.DeclaringClass})
		}
		out.Classes = append(out.Classes, cd)
	}
	return out
}
