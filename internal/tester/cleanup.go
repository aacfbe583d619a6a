package tester

// deleteFiles removes every planned test file in reverse order, best effort,
// and discards the layout. A file that is already gone is not an error, so
// running it twice is harmless.
//
// Removal failures are swallowed per file: leftover files carrying the test
// prefix are the documented mechanism for detecting a crashed run before the
// next one starts.
func (t *Tester) deleteFiles() {
	for i := len(t.layout.Files) - 1; i >= 0; i-- {
		_ = t.fs.Remove(t.layout.Files[i].Path)
	}

	t.layout = Layout{}
}
