package config

import "go.uber.org/multierr"

// Validator 配置验证接口（各模块实现）
type Validator interface {
	Validate() error
}

// ValidateAll validates every section and combines all failures
func ValidateAll(validators ...Validator) error {
	var err error
	for _, v := range validators {
		err = multierr.Append(err, v.Validate())
	}
	return err
}
