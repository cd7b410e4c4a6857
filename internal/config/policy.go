package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy carries ledger settings that operators may change without a restart.
type Policy struct {
	NumberPrefixes map[string]string `mapstructure:"numberPrefixes"`
}

func DefaultPolicy() Policy {
	return Policy{
		NumberPrefixes: map[string]string{
			"INVOICE":             "INV-",
			"PROVISIONAL_INVOICE": "PI-",
			"CREDIT_NOTE":         "",
			"ESTIMATION":          "EST-",
			"PURCHASE_INVOICE":    "PUR-",
			"PAYMENT":             "RCPT-",
			"SALES_RETURN":        "SR-",
			"DEALER_RETURN":       "DR-",
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(normalizePolicy(p))
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	if cfg.Ledger.PolicyPath != "" {
		v.SetConfigFile(cfg.Ledger.PolicyPath)
	} else {
		v.SetConfigName("ledger")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/bookledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BOOKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return NewStaticPolicyHolder(DefaultPolicy()), nil
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("ledger policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("ledger policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return normalizePolicy(DefaultPolicy())
	}
	p, ok := h.current.Load().(Policy)
	if !ok {
		return normalizePolicy(DefaultPolicy())
	}
	return p
}

// NumberPrefix returns the configured prefix for a document type.
func (h *PolicyHolder) NumberPrefix(docType string) (string, bool) {
	prefix, ok := h.Get().NumberPrefixes[strings.ToUpper(docType)]
	return prefix, ok
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	var p Policy
	if err := v.UnmarshalKey("ledger", &p); err != nil {
		return Policy{}, err
	}
	p = normalizePolicy(p)
	if err := validatePolicy(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// normalizePolicy upper-cases keys (viper lower-cases them) and fills gaps from defaults.
func normalizePolicy(p Policy) Policy {
	out := Policy{NumberPrefixes: map[string]string{}}
	for k, v := range DefaultPolicy().NumberPrefixes {
		out.NumberPrefixes[k] = v
	}
	for k, v := range p.NumberPrefixes {
		out.NumberPrefixes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func validatePolicy(p Policy) error {
	seen := map[string]string{}
	for docType, prefix := range p.NumberPrefixes {
		if prefix == "" {
			continue
		}
		if other, ok := seen[prefix]; ok {
			return errors.New("ledger.numberPrefixes: " + docType + " and " + other + " share a prefix")
		}
		seen[prefix] = docType
	}
	return nil
}
