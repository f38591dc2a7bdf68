package disk

// FreeBytes returns the bytes available to unprivileged users on the
// filesystem holding path
func FreeBytes(path string) (int64, error) {
	_, free, _, err := GetDiskUsage(path)
	return free, err
}
