package store

// SetScryptN lowers the scrypt cost for tests and returns a restore func.
func SetScryptN(n int) (restore func()) {
	prev := scryptN
	scryptN = n
	return func() { scryptN = prev }
}
