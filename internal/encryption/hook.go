package encryption

import (
	"context"
	"log/slog"

	"github.com/yndnr/stashkv/internal/codec"
	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/keycache"
	"github.com/yndnr/stashkv/internal/pipeline"
)

// HookName is the name the encryption hook registers under.
const HookName = "encryption"

// Hook seals values on set and opens them on get.
type Hook struct {
	keys   *keycache.Coalescer
	logger *slog.Logger
}

// NewHook creates the encryption hook.
func NewHook(keys *keycache.Coalescer, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{keys: keys, logger: logger.With("component", "encryption")}
}

// Name implements pipeline.Hook.
func (h *Hook) Name() string { return HookName }

// Before replaces the value of a set with its envelope. Keys without a
// credential are stored as plaintext, wrapped when the plaintext itself
// looks like an envelope. Any failure aborts the write.
func (h *Hook) Before(ctx context.Context, oc *pipeline.OperationContext) error {
	if oc.Op != domain.OpSet {
		return nil
	}

	ci, err := h.keys.GetKey(ctx, oc.Key)
	if err != nil {
		return domain.ErrEncryptionFailure.WithDetails("key derivation failed").WithCause(err)
	}
	if ci == nil {
		if wrapped, ok := escape(oc.Value); ok {
			h.logger.DebugContext(ctx, "escaped envelope-shaped plaintext", "key", oc.Key)
			oc.Value = wrapped
		}
		return nil
	}

	var (
		plain  []byte
		format string
	)
	if s, ok := oc.Value.(string); ok {
		plain, format = []byte(s), FormatString
	} else {
		plain, err = codec.Marshal(oc.Value)
		if err != nil {
			return domain.ErrEncryptionFailure.WithDetails("value could not be encoded").WithCause(err)
		}
		format = FormatCodec
	}

	sealed, err := ci.Encrypt(plain, []byte(oc.Key))
	if err != nil {
		return domain.ErrEncryptionFailure.WithCause(err)
	}
	oc.Value = newEnvelope(string(ci.Type()), format, sealed)
	return nil
}

// After opens an envelope returned by get and unwraps escaped plaintext.
// Other values pass through unchanged.
func (h *Hook) After(ctx context.Context, oc *pipeline.OperationContext, result any) (any, error) {
	if oc.Op != domain.OpGet {
		return result, nil
	}
	if v, ok := unescape(result); ok {
		return v, nil
	}
	env, ok := ParseEnvelope(result)
	if !ok {
		return result, nil
	}

	ci, err := h.keys.GetKey(ctx, oc.Key)
	if err != nil {
		return nil, domain.ErrDecryptionFailure.WithDetails("key derivation failed").WithCause(err)
	}
	if ci == nil {
		return nil, domain.ErrDecryptionFailure.WithDetails("no credential for encrypted record")
	}
	if env.Algorithm != string(ci.Type()) {
		return nil, domain.ErrDecryptionFailure.WithDetailsf("record sealed with %s, configured cipher is %s", env.Algorithm, ci.Type())
	}

	sealed, err := env.sealed()
	if err != nil {
		return nil, domain.ErrDecryptionFailure.WithDetails("malformed ciphertext").WithCause(err)
	}
	plain, err := ci.Decrypt(sealed, []byte(oc.Key))
	if err != nil {
		return nil, domain.ErrDecryptionFailure.WithCause(err)
	}

	switch env.Format {
	case FormatString:
		return string(plain), nil
	case FormatCodec:
		v, err := codec.Unmarshal(plain)
		if err != nil {
			return nil, domain.ErrDecryptionFailure.WithDetails("plaintext could not be decoded").WithCause(err)
		}
		return v, nil
	default:
		return nil, domain.ErrDecryptionFailure.WithDetailsf("unknown envelope format %q", env.Format)
	}
}
