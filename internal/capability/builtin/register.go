package builtin

import (
	"assistant-core/internal/capability"
	"assistant-core/pkg/config"
)

// Register 按配置把内置能力注册到 Registry
func Register(reg *capability.Registry, cfg *config.CapabilitiesConfig) error {
	if reg == nil {
		return nil
	}
	if err := reg.Register(NewCalculatorCapability()); err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	if cfg.Currency.Enable {
		if err := reg.Register(NewCurrencyCapability(cfg.Currency.BaseURL, cfg.Currency.APIKey)); err != nil {
			return err
		}
	}
	if cfg.Jobs.Enable {
		if err := reg.Register(NewJobsCapability(cfg.Jobs.BaseURL, cfg.Jobs.APIKey)); err != nil {
			return err
		}
	}
	return nil
}
