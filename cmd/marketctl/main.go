// marketctl is the automarket admin CLI: schema migration, manual rate
// refreshes, view counter resets, account and catalog maintenance and
// notification queue inspection.
package main

func main() {
	Execute()
}
