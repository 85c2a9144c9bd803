package detector

// Detector reports whether a configuration's tunnel looks up on this host.
// It never changes anything.
type Detector interface {
	// Alive returns true if the tunnel is detected as present.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
