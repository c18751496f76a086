package classfmt

// Hard limits of the class-file format. Branch offsets and exception table
// entries are 16-bit, so code beyond 65535 bytes is not addressable.
const (
	MaxCodeLength          = 65535
	MaxConstantPoolCount   = 65535
	MinMajorVersion        = 45
	DefaultMaxMajorVersion = 69 // Java 25
)

// Options controls decoding behavior. The zero value is the strictest
// configuration the format allows.
type Options struct {
	// PermitConstantsInInstanceFields accepts ConstantValue attributes on
	// non-static fields instead of failing the parse.
	PermitConstantsInInstanceFields bool

	MaxCodeLength        int    // 0 = MaxCodeLength; larger values are clamped
	MaxConstantPoolCount int    // 0 = MaxConstantPoolCount
	MaxMajorVersion      uint16 // 0 = DefaultMaxMajorVersion
}

func (o Options) EffectiveMaxCodeLength() int {
	if o.MaxCodeLength > 0 && o.MaxCodeLength < MaxCodeLength {
		return o.MaxCodeLength
	}
	return MaxCodeLength
}

func (o Options) EffectiveMaxConstantPoolCount() int {
	if o.MaxConstantPoolCount > 0 && o.MaxConstantPoolCount < MaxConstantPoolCount {
		return o.MaxConstantPoolCount
	}
	return MaxConstantPoolCount
}

func (o Options) EffectiveMaxMajorVersion() uint16 {
	if o.MaxMajorVersion >= MinMajorVersion {
		return o.MaxMajorVersion
	}
	return DefaultMaxMajorVersion
}
