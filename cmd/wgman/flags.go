package main

// GlobalFlags Flag structs to decouple cobra from logic for testing.
// Only flags the user actually set override the config file and environment.
type GlobalFlags struct {
	ConfigPath string
	Dir        string
	RunFile    string
	Tool       string
	Mock       bool
	LogLevel   string
	LogFormat  string
}

type UpFlags struct {
	Pattern string
}

type LsFlags struct {
	Pattern string
}

type StatusFlags struct {
	// Compact prints the status on a single line
	Compact bool
}
