package convert

// ConverterFactory creates a Converter from options.
type ConverterFactory func(opts Options) (Converter, error)

// DefaultConverterFactory builds an Engine.
var DefaultConverterFactory ConverterFactory = func(opts Options) (Converter, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CurrentConverterFactory is the factory the CLI uses.
var CurrentConverterFactory = DefaultConverterFactory

// SetConverterFactory replaces CurrentConverterFactory.
func SetConverterFactory(factory ConverterFactory) {
	CurrentConverterFactory = factory
}

// ResetConverterFactory restores DefaultConverterFactory.
func ResetConverterFactory() {
	CurrentConverterFactory = DefaultConverterFactory
}
