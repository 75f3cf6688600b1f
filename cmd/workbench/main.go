// Command workbench runs the job subsystem: the local HTTP API, schema
// migration, and operator commands for jobs, layouts and cleanup.
package main

func main() {
	Execute()
}
