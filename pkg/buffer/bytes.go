package buffer

// Blocks16KB creates a Circular of count blocks of 16KB each.
func Blocks16KB(count int, opts ...Option) (*Circular, error) {
	return NewCircular(1<<14, count, opts...)
}

// Blocks4KB creates a Circular of count blocks of 4KB each.
func Blocks4KB(count int, opts ...Option) (*Circular, error) {
	return NewCircular(1<<12, count, opts...)
}

// Blocks1KB creates a Circular of count blocks of 1KB each.
func Blocks1KB(count int, opts ...Option) (*Circular, error) {
	return NewCircular(1<<10, count, opts...)
}
