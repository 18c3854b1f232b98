package formats

import (
	"fmt"
	"strings"

	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/engine/callgraph"
	"reachgraph/internal/shared/util"
)

type TSVGenerator struct {
	result *analysis.Result
}

func NewTSVGenerator(res *analysis.Result) *TSVGenerator {
	return &TSVGenerator{result: res}
}

// Generate writes one row per recorded call, so a pair called from several
// lines appears once per line.
func (t *TSVGenerator) Generate() (string, error) {
	if t.result == nil {
		return "", fmt.Errorf("tsv: no analysis result")
	}
	var buf strings.Builder

	buf.WriteString("From\tTo\tModule\tExtModule\tLine\n")
	for _, src := range util.SortedStringKeys(t.result.Extended) {
		for _, rec := range t.result.Extended[src].Dsts {
			line := ""
			if rec.Line != callgraph.UnknownLine {
				line = fmt.Sprintf("%d", rec.Line)
			}
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n", src, rec.Dst, rec.Module, rec.ExtModule, line))
		}
	}
	return buf.String(), nil
}

func (t *TSVGenerator) GenerateKeyErrors() (string, error) {
	if t.result == nil {
		return "", fmt.Errorf("tsv: no analysis result")
	}
	var buf strings.Builder

	buf.WriteString("Type\tFile\tLine\tNamespace\tKey\n")
	for _, ke := range t.result.KeyErrors {
		buf.WriteString(fmt.Sprintf("key_error\t%s\t%d\t%s\t%s\n", ke.Filename, ke.Line, ke.Namespace, ke.Key))
	}
	return buf.String(), nil
}
