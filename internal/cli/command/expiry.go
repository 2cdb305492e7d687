package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stashkv/internal/cli/output"
	"github.com/yndnr/stashkv/internal/expiry"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/storage"
)

// SweepCommand returns the sweep command.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:   "sweep",
		Usage:  "Delete the expired records of the namespace once and report the next expiry",
		Action: expirySweep,
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show storage, scheduler and key-cache status of the namespace",
		Action: expiryStatus,
	}
}

// sweepReport is the result of `stashkv sweep`.
type sweepReport struct {
	Namespace  string `json:"namespace" yaml:"namespace"`
	Deleted    int    `json:"deleted" yaml:"deleted"`
	Failed     int    `json:"failed" yaml:"failed"`
	NextExpiry string `json:"next_expiry,omitempty" yaml:"next_expiry,omitempty"`
}

// Table implements output.Tabular.
func (r sweepReport) Table() *output.Table {
	next := r.NextExpiry
	if next == "" {
		next = "-"
	}
	return &output.Table{
		Headers: []string{"NAMESPACE", "DELETED", "FAILED", "NEXT EXPIRY"},
		Rows:    [][]string{{r.Namespace, strconv.Itoa(r.Deleted), strconv.Itoa(r.Failed), next}},
	}
}

// expirySweep works on the raw store: attaching the expiry hook would
// start a worker whose first sweep hides the count.
func expirySweep(c *cli.Context) error {
	cfg := GetConfig(c)
	ns := namespace(c)

	backend, err := storage.Open(cfg.StorageConfig(), GetLogger(c))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	store, err := backend.Namespace(ns)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Expiration.SweepTimeout)
	defer cancel()
	res, err := expiry.Sweep(ctx, store, time.Now())
	if err != nil {
		return err
	}

	report := sweepReport{Namespace: ns, Deleted: res.Deleted, Failed: res.Failed}
	if res.HasNext {
		report.NextExpiry = res.NextAt().UTC().Format(time.RFC3339Nano)
	}
	if err := render(c, report); err != nil {
		return err
	}
	if res.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d expired record(s) could not be deleted", res.Failed), 1)
	}
	return nil
}

// statusReport is the result of `stashkv status`.
type statusReport struct {
	Namespace  string         `json:"namespace" yaml:"namespace"`
	Driver     string         `json:"driver" yaml:"driver"`
	Strategy   string         `json:"strategy" yaml:"strategy"`
	Scheduler  string         `json:"scheduler" yaml:"scheduler"`
	LastError  string         `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LiveKeys   int            `json:"live_keys" yaml:"live_keys"`
	Records    int            `json:"stored_records" yaml:"stored_records"`
	Encryption bool           `json:"encryption" yaml:"encryption"`
	Cipher     string         `json:"cipher,omitempty" yaml:"cipher,omitempty"`
	KDF        string         `json:"kdf,omitempty" yaml:"kdf,omitempty"`
	KeyCache   keycache.Stats `json:"key_cache" yaml:"key_cache"`
}

// Table implements output.Tabular.
func (r statusReport) Table() *output.Table {
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("namespace", r.Namespace)
	t.AddRow("driver", r.Driver)
	t.AddRow("strategy", r.Strategy)
	t.AddRow("scheduler", r.Scheduler)
	if r.LastError != "" {
		t.AddRow("last error", r.LastError)
	}
	t.AddRow("live keys", strconv.Itoa(r.LiveKeys))
	t.AddRow("stored records", strconv.Itoa(r.Records))
	t.AddRow("encryption", strconv.FormatBool(r.Encryption))
	if r.Encryption {
		t.AddRow("cipher", r.Cipher)
		t.AddRow("kdf", r.KDF)
	}
	return t
}

func expiryStatus(c *cli.Context) error {
	return withStack(c, func(s *Stack) error {
		ns := s.Service.Namespace()
		report := statusReport{
			Namespace:  ns,
			Driver:     s.Backend.Driver(),
			Strategy:   string(s.Config.ExpiryConfig(nil).Strategy),
			Scheduler:  "none",
			Encryption: s.Config.Encryption.Enabled,
		}
		if report.Encryption {
			report.Cipher = string(s.Keys.CipherType())
			report.KDF = s.Config.Encryption.KDF
		}

		if reg := s.Expiry.Registry(); reg != nil {
			report.Scheduler = reg.Health(ns).String()
			for _, w := range reg.Workers() {
				if w.Namespace == ns && w.LastError != nil {
					report.LastError = w.LastError.Error()
				}
			}
		}

		var err error
		if report.LiveKeys, err = s.Service.Length(c.Context); err != nil {
			return err
		}
		if report.Records, err = s.Service.Store().Len(c.Context); err != nil {
			return err
		}
		report.KeyCache = s.Keys.Stats()
		return render(c, report)
	})
}
