package dedupe

// Pending returns the FIFO length of an in-memory deduper.
func Pending(d Deduper) int {
	m := d.(*inMemoryDeduper)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order) - m.head
}
