package report

import (
	"reachgraph/internal/engine/analysis"
	"reachgraph/internal/ui/report/formats"
)

type DOTGenerator = formats.DOTGenerator
type TSVGenerator = formats.TSVGenerator
type MermaidGenerator = formats.MermaidGenerator

func NewDOTGenerator(res *analysis.Result) *DOTGenerator {
	return formats.NewDOTGenerator(res)
}

func NewTSVGenerator(res *analysis.Result) *TSVGenerator {
	return formats.NewTSVGenerator(res)
}

func NewMermaidGenerator(res *analysis.Result) *MermaidGenerator {
	return formats.NewMermaidGenerator(res)
}

func GenerateSARIF(projectRoot string, res *analysis.Result) ([]byte, error) {
	return formats.GenerateSARIF(projectRoot, res)
}
