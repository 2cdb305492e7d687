package command

import (
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/cli/output"
	"github.com/yndnr/stashkv/internal/config"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Print the effective configuration with credentials masked",
		Action: configShow,
	}
}

func configShow(c *cli.Context) error {
	return render(c, configView(configTree(reflect.ValueOf(config.Sanitize(GetConfig(c))).Elem())))
}

// configTree converts a koanf-tagged struct into nested maps keyed by
// the same names the configuration file uses.
func configTree(v reflect.Value) map[string]any {
	out := make(map[string]any, v.NumField())
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("koanf")
		if name == "" {
			continue
		}
		f := v.Field(i)
		switch {
		case f.Type() == reflect.TypeOf(time.Duration(0)):
			out[name] = time.Duration(f.Int()).String()
		case f.Kind() == reflect.Struct:
			out[name] = configTree(f)
		default:
			out[name] = f.Interface()
		}
	}
	return out
}

// configView renders as dotted keys in table mode and as nested maps in
// json and yaml.
type configView map[string]any

// Table implements output.Tabular.
func (v configView) Table() *output.Table {
	flat := make(map[string]any)
	flatten("", v, flat)
	t := &output.Table{Headers: []string{"KEY", "VALUE"}}
	for _, k := range slices.Sorted(maps.Keys(flat)) {
		t.AddRow(k, output.Cell(flat[k]))
	}
	return t
}

func flatten(prefix string, m map[string]any, into map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			flatten(key, sub, into)
			continue
		}
		into[key] = val
	}
}
