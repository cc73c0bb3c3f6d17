// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the driver's Config and the paths driver.Build
// needs to load.
package cli
