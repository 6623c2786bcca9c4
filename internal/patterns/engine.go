// Package patterns validates conversion configurations and matches scan
// labels against their SeriesDescription rules.
//
// The engine does no I/O. Every operation is a function of the Config and
// labels it is given; compiled patterns are memoized only for the duration
// of a single call.
package patterns

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"bidsconv/internal/log"
	"bidsconv/pkg/types"
)

const (
	defaultCacheSize    = 256
	defaultMatchTimeout = time.Second
)

// Engine implements validation, matching, duplicate detection and
// optimization over a types.Config. An Engine holds no per-config state and
// is safe for concurrent use.
type Engine struct {
	logger       log.Logging
	cacheSize    int
	matchTimeout time.Duration
	scanner      *tokenScanner
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic sink. The default discards everything.
func WithLogger(l log.Logging) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCacheSize bounds the number of compiled patterns kept during one call.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// WithMatchTimeout bounds a single pattern evaluation. Zero disables the limit.
func WithMatchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.matchTimeout = d
	}
}

// WithTokens replaces the case-variant token table.
func WithTokens(pairs []TokenPair) Option {
	return func(e *Engine) {
		e.scanner = newTokenScanner(pairs)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       log.Nop(),
		cacheSize:    defaultCacheSize,
		matchTimeout: defaultMatchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scanner == nil {
		e.scanner = newTokenScanner(DefaultTokens)
	}
	return e
}

// Compile compiles pattern in the engine's regex dialect, which supports
// lookahead, inline flags such as (?i) and (?P<name>...) groups.
func (e *Engine) Compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return nil, err
	}
	if e.matchTimeout > 0 {
		re.MatchTimeout = e.matchTimeout
	}
	return re, nil
}

// Validate returns every problem found in cfg, or an empty slice when the
// configuration is fully valid. Pattern problems are listed before
// structural ones and both passes always run.
func (e *Engine) Validate(cfg *types.Config) []string {
	issues := []string{}
	issues = append(issues, e.validatePatterns(cfg)...)
	issues = append(issues, validateStructure(cfg)...)

	e.logger.With(log.F("rules", len(cfg.Rules())), log.F("issues", len(issues))).
		Debug("configuration validated")
	return issues
}

func (e *Engine) validatePatterns(cfg *types.Config) []string {
	var issues []string
	for idx, rule := range cfg.Rules() {
		pattern := rule.Pattern()
		if pattern == "" {
			issues = append(issues, fmt.Sprintf("Missing SeriesDescription in description %d", idx))
			continue
		}
		if _, err := e.Compile(pattern); err != nil {
			issues = append(issues, fmt.Sprintf("Invalid regex in description %d: %v", idx, err))
		}
	}
	return issues
}

func validateStructure(cfg *types.Config) []string {
	var issues []string
	if !cfg.HasSearchMethod() {
		issues = append(issues, "Missing 'searchMethod' in configuration")
	} else if *cfg.SearchMethod != types.SearchMethodRegex {
		issues = append(issues, fmt.Sprintf("Unsupported searchMethod '%s' in configuration", *cfg.SearchMethod))
	}
	if !cfg.HasDescriptions() {
		issues = append(issues, "Missing 'descriptions' in configuration")
	}

	for idx, rule := range cfg.Rules() {
		if rule.DataType == nil {
			issues = append(issues, fmt.Sprintf("Missing 'dataType' in description %d", idx))
		}
		if !rule.HasCriteria() {
			issues = append(issues, fmt.Sprintf("Missing 'criteria' in description %d", idx))
		}
		if rule.ModalityLabel == nil {
			issues = append(issues, fmt.Sprintf("Missing 'modalityLabel' in description %d", idx))
		}
	}
	return issues
}

// MatchLabel returns a Match for every rule whose pattern occurs anywhere in
// label, in rule order. Rules without a compilable pattern never match.
func (e *Engine) MatchLabel(cfg *types.Config, label string) []types.Match {
	return e.newMatcher().match(cfg, label)
}

// AnalyzeLabels matches each label against cfg. The report keeps the input
// order; callers deduplicate labels beforehand.
func (e *Engine) AnalyzeLabels(cfg *types.Config, labels []string) types.Report {
	m := e.newMatcher()
	report := types.Report{Labels: make([]types.LabelMatches, 0, len(labels))}
	for _, label := range labels {
		report.Labels = append(report.Labels, types.LabelMatches{
			Label:   label,
			Matches: m.match(cfg, label),
		})
	}

	if gaps := report.Unmatched(); len(gaps) > 0 {
		e.logger.With(log.F("unmatched", len(gaps)), log.F("labels", len(labels))).
			Info("scan labels not covered by any rule")
	}
	return report
}

// FindDuplicates reports rules sharing identical pattern text and patterns
// that spell a known token in two cases. Findings are advisory only.
func (e *Engine) FindDuplicates(cfg *types.Config) []types.Diagnostic {
	diags := []types.Diagnostic{}
	rules := cfg.Rules()

	var order []string
	byPattern := make(map[string][]int)
	for idx, rule := range rules {
		p := rule.Pattern()
		if p == "" {
			continue
		}
		if _, ok := byPattern[p]; !ok {
			order = append(order, p)
		}
		byPattern[p] = append(byPattern[p], idx)
	}
	for _, p := range order {
		if indices := byPattern[p]; len(indices) > 1 {
			diags = append(diags, types.Diagnostic{
				Kind:    types.ExactDuplicate,
				Pattern: p,
				Indices: indices,
			})
		}
	}

	for idx, rule := range rules {
		p := rule.Pattern()
		for _, pair := range e.scanner.pairsIn(p) {
			diags = append(diags, types.Diagnostic{
				Kind:        types.NearDuplicate,
				Pattern:     p,
				Indices:     []int{idx},
				Token:       pair.Token,
				Variant:     pair.Variant,
				Replacement: pair.Replacement,
			})
		}
	}

	e.logger.With(log.F("diagnostics", len(diags))).Debug("duplicate scan finished")
	return diags
}

// Optimize returns a new Config with case-insensitive duplicate rules removed
// and the token table substitutions applied. The first rule for a
// lower-cased pattern wins, and later rules are dropped without merging
// their coverage. A later rule whose rewritten pattern collides with an
// already kept rewritten pattern is dropped too, so optimizing the result
// again changes nothing. Rules without a pattern are kept unchanged.
//
// The result is not validated.
func (e *Engine) Optimize(cfg *types.Config) *types.Config {
	rules := cfg.Rules()
	out := make([]types.Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	seenRewritten := make(map[string]bool, len(rules))

	for idx, rule := range rules {
		p := rule.Pattern()
		if p == "" {
			out = append(out, rule)
			continue
		}

		key := strings.ToLower(p)
		rewritten := e.scanner.rewrite(p)
		rewrittenKey := strings.ToLower(rewritten)
		if seen[key] || seenRewritten[rewrittenKey] {
			e.logger.With(log.F("description", idx), log.F("pattern", p)).
				Debug("dropping duplicate rule")
			continue
		}
		seen[key] = true
		seenRewritten[rewrittenKey] = true

		if rewritten == p {
			out = append(out, rule)
		} else {
			out = append(out, rule.WithPattern(rewritten))
		}
	}

	e.logger.With(log.F("before", len(rules)), log.F("after", len(out))).Info("configuration optimized")
	return &types.Config{
		SearchMethod: types.StringPtr(types.SearchMethodRegex),
		Descriptions: out,
	}
}

type compiled struct {
	re  *regexp2.Regexp
	err error
}

// matcher carries the compile cache for one engine call.
type matcher struct {
	engine *Engine
	cache  *lru.Cache[string, compiled]
}

func (e *Engine) newMatcher() *matcher {
	size := e.cacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, compiled](size)
	return &matcher{engine: e, cache: cache}
}

func (m *matcher) compile(pattern string) (*regexp2.Regexp, error) {
	if c, ok := m.cache.Get(pattern); ok {
		return c.re, c.err
	}
	re, err := m.engine.Compile(pattern)
	m.cache.Add(pattern, compiled{re: re, err: err})
	return re, err
}

func (m *matcher) match(cfg *types.Config, label string) []types.Match {
	matches := []types.Match{}
	for idx, rule := range cfg.Rules() {
		p := rule.Pattern()
		if p == "" {
			continue
		}
		re, err := m.compile(p)
		if err != nil {
			continue
		}

		ok, err := re.MatchString(label)
		if err != nil {
			m.engine.logger.With(log.F("description", idx), log.F("label", label)).WithError(err).
				Warn("pattern evaluation failed")
			continue
		}
		if ok {
			matches = append(matches, types.Match{
				Pattern:  p,
				Modality: rule.ModalityLabelOr(),
				DataType: rule.DataTypeOr(),
			})
		}
	}
	return matches
}
