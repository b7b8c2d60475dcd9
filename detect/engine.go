package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hireloop/formsense/dom"
)

// Engine orchestrates strategy selection, fallback, confidence filtering
// and result capping. It keeps no state between scans: every Detect call is
// a fresh pass over the tree.
type Engine struct {
	opts       Options
	strategies map[Platform]Strategy
	logger     *slog.Logger
}

// NewEngine builds an Engine with one strategy instance per platform.
func NewEngine(opts Options) *Engine {
	opts.applyDefaults()
	scfg := StrategyConfig{
		Classifier:     NewClassifier(opts.ProfileRules),
		Scorer:         NewScorer(opts.Weights, opts.Keywords),
		Logger:         opts.Logger,
		SkipJobContext: opts.SkipJobContext,
	}
	e := &Engine{
		opts:       opts,
		strategies: make(map[Platform]Strategy, len(opts.PlatformPriority)),
		logger:     opts.Logger,
	}
	for _, p := range opts.PlatformPriority {
		e.strategies[p] = NewStrategy(p, scfg)
	}
	return e
}

// IdentifyPlatform resolves the page's platform by fixed precedence: named
// platforms by domain/URL/structural signature, generic for everything
// else.
func (e *Engine) IdentifyPlatform(doc *dom.Document) Platform {
	for _, p := range e.opts.PlatformPriority {
		if p == PlatformGeneric {
			continue
		}
		if s, ok := e.strategies[p]; ok && s.Applies(doc) {
			return p
		}
	}
	return PlatformGeneric
}

// Detect runs a full detection scan. It always returns a usable Result:
// per-container and per-strategy failures are recorded in Errors, a blown
// time budget truncates fallback and marks TimedOut, and only a failure
// before any analysis began yields Success == false.
func (e *Engine) Detect(ctx context.Context, doc *dom.Document) Result {
	start := time.Now()
	res := Result{Success: true}

	if doc == nil {
		res.Success = false
		res.Errors = append(res.Errors, newError(StageFatal, "", fmt.Errorf("nil document")))
		res.Duration = time.Since(start)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.TimeBudget)
	defer cancel()

	platform := e.IdentifyPlatform(doc)
	res.Platform = platform
	e.logger.Debug("detect: platform identified", "platform", platform, "url", doc.URL())

	forms, errs := e.runStrategy(platform, doc)
	res.Errors = append(res.Errors, errs...)

	// Fallback: when the primary strategy found nothing, try the rest in
	// priority order within the remaining time budget.
	if len(forms) == 0 && !e.opts.DisableFallback {
		for _, p := range e.opts.PlatformPriority {
			if p == platform {
				continue
			}
			if ctx.Err() != nil {
				res.TimedOut = true
				res.Errors = append(res.Errors, newError(StageTimeout, p,
					fmt.Errorf("time budget %s exhausted before fallback completed", e.opts.TimeBudget)))
				break
			}
			fbForms, fbErrs := e.runStrategy(p, doc)
			res.Errors = append(res.Errors, fbErrs...)
			for i := range fbForms {
				fbForms[i].FormID = "fallback-" + fbForms[i].FormID
			}
			if len(fbForms) > 0 {
				e.logger.Info("detect: fallback strategy found forms",
					"platform", p, "forms", len(fbForms))
				forms = fbForms
				break
			}
		}
	}

	// Confidence filter: low scorers are dropped silently, not errors.
	kept := forms[:0]
	for _, f := range forms {
		if len(f.Fields) == 0 {
			continue
		}
		if f.Confidence < e.opts.MinConfidence {
			e.logger.Debug("detect: form below confidence threshold",
				"form_id", f.FormID, "confidence", f.Confidence)
			continue
		}
		kept = append(kept, f)
	}

	// Highest-confidence forms first, then cap.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	if len(kept) > e.opts.MaxFormsPerPage {
		kept = kept[:e.opts.MaxFormsPerPage]
	}

	res.Forms = kept
	res.Duration = time.Since(start)
	e.logger.Info("detect: scan complete",
		"url", doc.URL(),
		"platform", platform,
		"forms", len(res.Forms),
		"errors", len(res.Errors),
		"duration", res.Duration)
	return res
}

// runStrategy isolates a strategy behind panic recovery; a broken strategy
// degrades to an error entry instead of killing the scan.
func (e *Engine) runStrategy(p Platform, doc *dom.Document) (forms []DetectedForm, errs []Error) {
	s, ok := e.strategies[p]
	if !ok {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			forms = nil
			errs = append(errs, newError(StageStrategy, p, fmt.Errorf("strategy panicked: %v", r)))
		}
	}()
	// Fallback runs strategies on pages that do not match them; their
	// container selectors still only act on their own markup.
	forms, errs = s.Detect(doc)
	return forms, errs
}
