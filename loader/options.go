package loader

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
	"github.com/teranos/protobridge/errors"
	"github.com/teranos/protobridge/strategy"
)

// Option keys accepted from the pipeline
const (
	OptionStatic                   = "static"
	OptionConvertFieldsToCamelCase = "convertFieldsToCamelCase"
	OptionBinaryAsBase64           = "binaryAsBase64"
	OptionLongsAsStrings           = "longsAsStrings"
	OptionEnumsAsStrings           = "enumsAsStrings"
)

// OptionKeys lists every recognised option key
var OptionKeys = []string{
	OptionStatic,
	OptionConvertFieldsToCamelCase,
	OptionBinaryAsBase64,
	OptionLongsAsStrings,
	OptionEnumsAsStrings,
}

// ResolveOptions overlays opts on the loader defaults. Keys match
// case-insensitively; unknown keys are logged and ignored. A value that
// cannot be read as a boolean yields ErrInvalidOption.
func (l *Loader) ResolveOptions(opts map[string]interface{}) (strategy.Options, error) {
	v := viper.New()
	v.SetDefault(OptionStatic, l.defaults.Static)
	for key, val := range map[string]*bool{
		OptionConvertFieldsToCamelCase: l.defaults.ConvertFieldsToCamelCase,
		OptionBinaryAsBase64:           l.defaults.BinaryAsBase64,
		OptionLongsAsStrings:           l.defaults.LongsAsStrings,
		OptionEnumsAsStrings:           l.defaults.EnumsAsStrings,
	} {
		if val != nil {
			v.SetDefault(key, *val)
		}
	}

	overlay := make(map[string]interface{}, len(opts))
	var unknown []string
	for key, val := range opts {
		if !isOptionKey(key) {
			unknown = append(unknown, key)
			continue
		}
		if val == nil {
			continue
		}
		overlay[key] = val
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		l.logger.Debugw("Ignoring unknown options", "options", unknown)
	}

	if err := v.MergeConfigMap(overlay); err != nil {
		return strategy.Options{}, errors.NewInvalidOptionError("%v", err)
	}

	var out strategy.Options
	if err := v.Unmarshal(&out); err != nil {
		return strategy.Options{}, errors.WithHint(
			errors.NewInvalidOptionError("%v", err),
			"option values must be true, false, 1 or 0",
		)
	}
	return out, nil
}

func isOptionKey(key string) bool {
	for _, k := range OptionKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
