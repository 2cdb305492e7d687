package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/cli/output"
	"github.com/yndnr/stashkv/internal/codec"
	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/core/service"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under KEY",
		ArgsUsage: "KEY",
		Action:    kvGet,
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Aliases:   []string{"put"},
		Usage:     "Store VALUE under KEY",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Parse VALUE as JSON, including tagged rich values",
			},
			&cli.StringFlag{
				Name:    "ttl",
				Aliases: []string{"t"},
				Usage:   "Relative lifetime (e.g., 30s, 5m, 2h, 7d, or milliseconds)",
			},
			&cli.StringFlag{
				Name:  "expires",
				Usage: "Absolute expiry as RFC 3339, YYYY-MM-DD or epoch milliseconds",
			},
			&cli.StringSliceFlag{
				Name:    "meta",
				Aliases: []string{"m"},
				Usage:   "Extra metadata as FIELD=VALUE pairs",
			},
		},
		Action: kvSet,
	}
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove", "del"},
		Usage:     "Remove KEY",
		ArgsUsage: "KEY",
		Action:    kvRemove,
	}
}

// KeysCommand returns the keys command.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:   "keys",
		Usage:  "List the live keys of the namespace",
		Action: kvKeys,
	}
}

// LengthCommand returns the len command.
func LengthCommand() *cli.Command {
	return &cli.Command{
		Name:   "len",
		Usage:  "Count the live keys of the namespace",
		Action: kvLength,
	}
}

// ClearCommand returns the clear command.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every key of the namespace",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Required to confirm the operation",
			},
		},
		Action: kvClear,
	}
}

// MetaCommand returns the meta command.
func MetaCommand() *cli.Command {
	return &cli.Command{
		Name:      "meta",
		Usage:     "Print the metadata stored with KEY",
		ArgsUsage: "KEY",
		Action:    kvMeta,
	}
}

func kvGet(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	key := c.Args().First()

	return withStack(c, func(s *Stack) error {
		value, err := s.Service.Get(c.Context, key)
		if err != nil {
			return err
		}
		if value == nil {
			return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
		}

		if format, _ := output.ParseFormat(c.String("output")); format == output.FormatJSON {
			return writeCodecJSON(c, value)
		}
		return render(c, value)
	})
}

// writeCodecJSON prints value in the tagged form `set --json` accepts.
func writeCodecJSON(c *cli.Context, value any) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(writer(c))
	return err
}

func kvSet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	key, raw := c.Args().Get(0), c.Args().Get(1)

	var value any = raw
	if c.Bool("json") {
		v, err := codec.Unmarshal([]byte(raw))
		if err != nil {
			return err
		}
		value = v
	}

	opts, err := setOptions(c)
	if err != nil {
		return err
	}

	return withStack(c, func(s *Stack) error {
		return s.Service.Set(c.Context, key, value, opts...)
	})
}

func setOptions(c *cli.Context) ([]service.SetOption, error) {
	var opts []service.SetOption
	if c.IsSet("ttl") {
		opts = append(opts, service.WithTTL(numericOrString(c.String("ttl"))))
	}
	if c.IsSet("expires") {
		opts = append(opts, service.WithExpires(numericOrString(c.String("expires"))))
	}
	if pairs := c.StringSlice("meta"); len(pairs) > 0 {
		md := make(domain.Metadata, len(pairs))
		for _, pair := range pairs {
			field, val, ok := strings.Cut(pair, "=")
			if !ok || field == "" {
				return nil, cli.Exit(fmt.Sprintf("invalid --meta %q: want FIELD=VALUE", pair), 2)
			}
			if field == domain.MetaTTL || field == domain.MetaExpires {
				return nil, cli.Exit(fmt.Sprintf("use --%s instead of --meta %s=...", field, field), 2)
			}
			md[field] = val
		}
		opts = append(opts, service.WithMetadata(md))
	}
	return opts, nil
}

// numericOrString turns "1500" into int64(1500) so it reads as
// milliseconds; anything else stays a string for the TTL parser.
func numericOrString(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func kvRemove(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withStack(c, func(s *Stack) error {
		return s.Service.Remove(c.Context, c.Args().First())
	})
}

func kvKeys(c *cli.Context) error {
	return withStack(c, func(s *Stack) error {
		keys, err := s.Service.Keys(c.Context)
		if err != nil {
			return err
		}
		if keys == nil {
			keys = []string{}
		}
		return render(c, keys)
	})
}

func kvLength(c *cli.Context) error {
	return withStack(c, func(s *Stack) error {
		n, err := s.Service.Length(c.Context)
		if err != nil {
			return err
		}
		return render(c, n)
	})
}

func kvClear(c *cli.Context) error {
	if !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("refusing to clear namespace %q without --force", namespace(c)), 2)
	}
	return withStack(c, func(s *Stack) error {
		return s.Service.Clear(c.Context)
	})
}

func kvMeta(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	key := c.Args().First()

	return withStack(c, func(s *Stack) error {
		md, err := s.Service.GetMetadata(c.Context, key)
		if err != nil {
			return err
		}
		if md == nil {
			return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
		}
		return render(c, metaView{key: key, meta: md, now: time.Now()})
	})
}

// metaView renders record metadata, showing expires as a timestamp and
// the time remaining.
type metaView struct {
	key  string
	meta domain.Metadata
	now  time.Time
}

// Table implements output.Tabular.
func (v metaView) Table() *output.Table {
	fields := make([]string, 0, len(v.meta))
	for f := range v.meta {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	for _, f := range fields {
		cell := output.Cell(v.meta[f])
		if f == domain.MetaExpires {
			if ms, ok := v.meta.ExpiresAt(); ok {
				at := time.UnixMilli(ms)
				cell = fmt.Sprintf("%s (in %s)", at.UTC().Format(time.RFC3339), at.Sub(v.now).Round(time.Second))
			}
		}
		t.AddRow(f, cell)
	}
	return t
}

// MarshalJSON renders the raw metadata for scripts.
func (v metaView) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(v.meta))
}

// MarshalYAML renders the raw metadata for scripts.
func (v metaView) MarshalYAML() (any, error) {
	return map[string]any(v.meta), nil
}
