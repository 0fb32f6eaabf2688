package cmd

// watchResize is a no-op, Windows consoles don't signal size changes.
func watchResize(fd int, resize func(width, height int)) (stop func()) {
	return func() {}
}
