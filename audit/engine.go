package audit

import (
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// Engine runs audits. It holds only immutable configuration, so one Engine
// may serve any number of concurrent Run calls.
type Engine struct {
	normalizer *Normalizer
}

// Option configures an Engine.
type Option func(*Engine)

// WithNormalizer replaces the built-in alias table.
func WithNormalizer(n *Normalizer) Option {
	return func(e *Engine) {
		e.normalizer = n
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{normalizer: DefaultNormalizer()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalizer returns the alias table the engine normalizes with.
func (e *Engine) Normalizer() *Normalizer {
	return e.normalizer
}

// Run audits one statement against one bundle. Only structurally invalid
// input returns an error; data gaps come back as flags.
func (e *Engine) Run(req Request, bundle *ratetable.Bundle) (*Result, error) {
	if bundle == nil {
		return nil, ErrBundleRequired
	}

	profile, lines, err := e.normalizer.Validate(req)
	if err != nil {
		return nil, err
	}

	rates := Resolve(profile, bundle)
	snapshot := BuildSnapshot(rates)
	outcomes := Compare(snapshot, lines)
	flags := GenerateFlags(outcomes)
	summary, netFlag := Reconcile(snapshot, lines, req.ReportedNet)

	flags = append(flags, netFlag)
	SortFlags(flags)

	return &Result{
		BundleVersion: bundle.Version,
		Profile:       profile,
		Snapshot:      snapshot,
		Lines:         lines,
		Outcomes:      outcomes,
		Flags:         flags,
		Summary:       summary,
	}, nil
}
