package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PolicyStatusReady     = "READY"
	PolicyStatusPreparing = "PREPARING"
)

// OrderPolicy holds order rules that operators may change without a deploy.
type OrderPolicy struct {
	// AutoCompleteFrom lists the order statuses from which a fully paid
	// order is completed inside the payment transaction.
	AutoCompleteFrom []string `mapstructure:"autoCompleteFrom"`
}

func DefaultOrderPolicy() OrderPolicy {
	return OrderPolicy{AutoCompleteFrom: []string{PolicyStatusReady}}
}

// AutoCompletes reports whether a fully paid order in status completes automatically.
func (p OrderPolicy) AutoCompletes(status string) bool {
	status = strings.ToUpper(strings.TrimSpace(status))
	for _, s := range p.AutoCompleteFrom {
		if strings.ToUpper(strings.TrimSpace(s)) == status {
			return true
		}
	}
	return false
}

type OrderPolicyHolder struct {
	current atomic.Value // holds OrderPolicy
}

func NewOrderPolicyHolder(log *zap.Logger) (*OrderPolicyHolder, error) {
	return newOrderPolicyHolder(log, "/var/lib/kasir/config", "/etc/kasir", ".")
}

// NewStaticOrderPolicyHolder returns a holder that never reloads.
func NewStaticOrderPolicyHolder(policy OrderPolicy) *OrderPolicyHolder {
	holder := &OrderPolicyHolder{}
	holder.current.Store(normalizePolicy(policy))
	return holder
}

func newOrderPolicyHolder(log *zap.Logger, paths ...string) (*OrderPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.policy")

	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("KASIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("order.autoCompleteFrom", "KASIR_ORDER_AUTO_COMPLETE_FROM")

	defaults := DefaultOrderPolicy()
	v.SetDefault("order.autoCompleteFrom", defaults.AutoCompleteFrom)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &OrderPolicyHolder{}
	holder.current.Store(policy)
	log.Info("order policy loaded",
		zap.Strings("auto_complete_from", policy.AutoCompleteFrom),
		zap.Bool("from_file", fileLoaded),
	)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePolicy(v)
			if err != nil {
				log.Warn("invalid order policy ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("order policy reloaded",
				zap.String("file", e.Name),
				zap.Strings("auto_complete_from", updated.AutoCompleteFrom),
			)
		})
	}

	return holder, nil
}

func (h *OrderPolicyHolder) Get() OrderPolicy {
	if h == nil {
		return DefaultOrderPolicy()
	}
	policy, ok := h.current.Load().(OrderPolicy)
	if !ok {
		return DefaultOrderPolicy()
	}
	return policy
}

func decodePolicy(v *viper.Viper) (OrderPolicy, error) {
	var policy OrderPolicy
	if err := v.UnmarshalKey("order", &policy); err != nil {
		return OrderPolicy{}, err
	}
	policy = normalizePolicy(policy)
	if err := validateOrderPolicy(policy); err != nil {
		return OrderPolicy{}, err
	}
	return policy, nil
}

func normalizePolicy(policy OrderPolicy) OrderPolicy {
	out := make([]string, 0, len(policy.AutoCompleteFrom))
	seen := make(map[string]struct{}, len(policy.AutoCompleteFrom))
	for _, raw := range policy.AutoCompleteFrom {
		status := strings.ToUpper(strings.TrimSpace(raw))
		if status == "" {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	policy.AutoCompleteFrom = out
	return policy
}

func validateOrderPolicy(policy OrderPolicy) error {
	if len(policy.AutoCompleteFrom) == 0 {
		return errors.New("order.autoCompleteFrom cannot be empty")
	}
	for _, status := range policy.AutoCompleteFrom {
		switch status {
		case PolicyStatusReady, PolicyStatusPreparing:
		default:
			return fmt.Errorf("order.autoCompleteFrom: unsupported status %q", status)
		}
	}
	return nil
}
