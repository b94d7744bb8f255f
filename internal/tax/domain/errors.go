package domain

import "errors"

var (
	ErrInvalidTaxCode = errors.New("invalid_tax_code")
	ErrInvalidTaxMode = errors.New("invalid_tax_mode")
	ErrInvalidTaxRate = errors.New("invalid_tax_rate")
)
