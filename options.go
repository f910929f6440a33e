package cbjson

import "fmt"

// ParserOption is a parser option.
type ParserOption func(o *parserOptions) error

type parserOptions struct {
	maxDepth        int
	validateStrings bool
}

func (o *parserOptions) defaults() {
	o.maxDepth = maxNestingDepth
	o.validateStrings = true
}

// WithMaxDepth limits how deeply containers may nest while parsing.
// Default: 128.
func WithMaxDepth(n int) ParserOption {
	return func(o *parserOptions) error {
		if n <= 0 {
			return fmt.Errorf("max depth must be positive, got %d", n)
		}
		o.maxDepth = n
		return nil
	}
}

// WithValidateStrings controls UTF-8 validation of decoded strings and keys.
// Strings are stored raw, so readers assume validity was established here;
// disable only for trusted input.
// Default: true - strings are validated.
func WithValidateStrings(b bool) ParserOption {
	return func(o *parserOptions) error {
		o.validateStrings = b
		return nil
	}
}
