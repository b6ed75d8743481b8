package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"imagefin/internal/ports"
	"imagefin/internal/types"
)

// VariantConfigAdapter resolves build variants from a YAML configuration. A
// binary matches the rule whose runtime soname appears among its needed
// libraries (or is its own soname); the rule with no match expression is the
// base variant.
type VariantConfigAdapter struct {
	rules []types.VariantRule
}

func NewVariantConfigAdapter(rules []types.VariantRule) VariantConfigAdapter {
	return VariantConfigAdapter{rules: rules}
}

// LoadVariantConfig reads the variant configuration file. An empty path
// yields an adapter with only the built-in base variant.
func LoadVariantConfig(path string) (VariantConfigAdapter, error) {
	if path == "" {
		return VariantConfigAdapter{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return VariantConfigAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read variant config %s", path)).
			WithCause(err)
	}
	var config types.VariantConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return VariantConfigAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse variant config %s", path)).
			WithCause(err)
	}
	for _, rule := range config.Variants {
		if rule.Name == "" {
			return VariantConfigAdapter{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("variant config %s contains a rule without a name", path))
		}
	}
	return VariantConfigAdapter{rules: config.Variants}, nil
}

func (a VariantConfigAdapter) Resolve(info *types.ElfInfo) (types.VariantDescriptor, string, error) {
	for _, rule := range a.rules {
		if rule.Match == "" {
			continue
		}
		if info.Soname != rule.Match && !slices.Contains(info.Needed, rule.Match) {
			continue
		}
		return rule.Descriptor(), a.realPath(rule, info), nil
	}
	for _, rule := range a.rules {
		if rule.Match == "" {
			return rule.Descriptor(), "", nil
		}
	}
	return types.VariantDescriptor{Name: "base"}, "", nil
}

// realPath reports where the variant actually built the binary when that
// differs from the probed location.
func (a VariantConfigAdapter) realPath(rule types.VariantRule, info *types.ElfInfo) string {
	if rule.DistDir == "" {
		return ""
	}
	candidate := filepath.Join(rule.DistDir, filepath.Base(info.Filename))
	if candidate == info.Filename {
		return ""
	}
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

var _ ports.VariantResolverPort = VariantConfigAdapter{}
