// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package autopilot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Policy effects a rule can declare.
const (
	EffectDeny             = "deny"
	EffectRequireStability = "require-stability"
)

// PolicyRule is a user-authored autonomy constraint loaded from a YAML file.
type PolicyRule struct {
	// Name identifies the rule in refusal reasons and logs.
	Name string `yaml:"name"`

	// Description is free-form documentation, unused by evaluation.
	Description string `yaml:"description,omitempty"`

	// Condition is an expr expression evaluated against a PolicyContext.
	// Empty or "true" always matches.
	Condition string `yaml:"condition"`

	// Effect is what a matching rule does: deny autonomy outright, or
	// require the pattern to be stable.
	Effect string `yaml:"effect"`

	// Priority orders rule evaluation; higher runs first.
	Priority int `yaml:"priority,omitempty"`
}

// PolicyContext is the environment a rule condition is evaluated against.
type PolicyContext struct {
	Project       string
	Model         string
	Confidence    float64
	SwitchPenalty float64
	Hour          int
	DayOfWeek     string
}

// PolicyVerdict is the combined outcome of evaluating all loaded rules.
type PolicyVerdict struct {
	Deny             bool
	RequireStability bool
	MatchedRules     []string
}

// PolicyEngine loads, hot-reloads, and evaluates autonomy policy rules.
type PolicyEngine struct {
	dir      string
	rules    []*PolicyRule
	programs map[string]*vm.Program
	mu       sync.RWMutex

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
	watcherWG   sync.WaitGroup
}

// NewPolicyEngine creates a policy engine for the given rule directory.
// An empty directory path yields an engine with no rules.
func NewPolicyEngine(dir string) *PolicyEngine {
	return &PolicyEngine{
		dir:      dir,
		programs: make(map[string]*vm.Program),
	}
}

// LoadRules loads all .yaml rule files from the policy directory.
// A missing directory is not an error; it simply means no rules.
func (pe *PolicyEngine) LoadRules() error {
	pe.mu.Lock()
	defer pe.mu.Unlock()

	pe.rules = nil
	pe.programs = make(map[string]*vm.Program)

	if pe.dir == "" {
		return nil
	}
	if _, err := os.Stat(pe.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(pe.dir)
	if err != nil {
		return fmt.Errorf("policy: failed to read directory %s: %w", pe.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(pe.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("Failed to read policy rule %s: %v", path, err)
			continue
		}

		rule := &PolicyRule{}
		if err := yaml.Unmarshal(data, rule); err != nil {
			log.Warnf("Failed to parse policy rule %s: %v", path, err)
			continue
		}
		if rule.Name == "" {
			rule.Name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		if rule.Effect != EffectDeny && rule.Effect != EffectRequireStability {
			log.Warnf("Policy rule %s has unknown effect %q, skipping", rule.Name, rule.Effect)
			continue
		}

		if rule.Condition != "" && rule.Condition != "true" {
			program, err := expr.Compile(rule.Condition, expr.Env(PolicyContext{}), expr.AsBool())
			if err != nil {
				log.Warnf("Failed to compile policy condition for rule %s: %v", rule.Name, err)
				continue
			}
			pe.programs[rule.Condition] = program
		}

		pe.rules = append(pe.rules, rule)
	}

	sort.SliceStable(pe.rules, func(i, j int) bool {
		return pe.rules[i].Priority > pe.rules[j].Priority
	})

	log.Infof("Loaded %d autonomy policy rules from %s", len(pe.rules), pe.dir)
	return nil
}

// Evaluate runs every rule against ctx and combines their effects.
// A rule whose condition fails to evaluate is skipped, not treated as a deny.
func (pe *PolicyEngine) Evaluate(pctx PolicyContext) PolicyVerdict {
	pe.mu.RLock()
	defer pe.mu.RUnlock()

	verdict := PolicyVerdict{}
	for _, rule := range pe.rules {
		matched, err := pe.evaluateCondition(rule.Condition, pctx)
		if err != nil {
			log.Warnf("Policy rule %s evaluation failed: %v", rule.Name, err)
			continue
		}
		if !matched {
			continue
		}

		verdict.MatchedRules = append(verdict.MatchedRules, rule.Name)
		switch rule.Effect {
		case EffectDeny:
			verdict.Deny = true
		case EffectRequireStability:
			verdict.RequireStability = true
		}
	}
	return verdict
}

func (pe *PolicyEngine) evaluateCondition(condition string, pctx PolicyContext) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	program, ok := pe.programs[condition]
	if !ok {
		return false, fmt.Errorf("condition %q not compiled", condition)
	}

	output, err := expr.Run(program, pctx)
	if err != nil {
		return false, err
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a boolean", condition)
	}
	return result, nil
}

// RuleCount returns the number of loaded rules.
func (pe *PolicyEngine) RuleCount() int {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	return len(pe.rules)
}

// StartWatching hot-reloads rules when files in the policy directory change.
func (pe *PolicyEngine) StartWatching() error {
	if pe.dir == "" {
		return nil
	}
	if _, err := os.Stat(pe.dir); os.IsNotExist(err) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: failed to create watcher: %w", err)
	}
	if err := watcher.Add(pe.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("policy: failed to watch %s: %w", pe.dir, err)
	}

	pe.watcher = watcher
	pe.stopWatcher = make(chan struct{})

	pe.watcherWG.Add(1)
	go func() {
		defer pe.watcherWG.Done()
		// Small debounce so editors that write twice trigger one reload.
		var reload <-chan time.Time
		for {
			select {
			case <-pe.stopWatcher:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					reload = time.After(200 * time.Millisecond)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("Policy watcher error: %v", err)
			case <-reload:
				reload = nil
				if err := pe.LoadRules(); err != nil {
					log.Warnf("Policy reload failed: %v", err)
				}
			}
		}
	}()

	return nil
}

// StopWatching stops the hot-reload watcher.
func (pe *PolicyEngine) StopWatching() {
	if pe.watcher == nil {
		return
	}
	close(pe.stopWatcher)
	_ = pe.watcher.Close()
	pe.watcherWG.Wait()
	pe.watcher = nil
}
