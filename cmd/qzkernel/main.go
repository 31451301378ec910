// Command qzkernel is the reference CLI boundary for the kernel: init, run,
// shutdown, validate-config, health, status, manager list|status.
package main

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	SetVersion(version)
	Execute()
}
