package passes

import "log/slog"

// PostProcessor re-walks every internal module reachable from the entry so
// facts depending on later definitions, on imported modules or on call
// arguments propagate. The orchestrator repeats it until nothing changes.
type PostProcessor struct {
	base
}

func NewPostProcessor(env *Env, file, module string, analyzed ModuleSet) *PostProcessor {
	return &PostProcessor{base: newBase(env, file, module, analyzed)}
}

func (p *PostProcessor) Analyze() error {
	if !p.begin() {
		return nil
	}
	if !p.env.Modules.IsInternal(p.module) {
		return nil
	}
	if err := p.analyzeImported(PostProcessorFactory(p.env)); err != nil {
		return err
	}
	slog.Debug("postprocessing module", "module", p.module)
	return p.walk(p.definitionHandlers())
}
