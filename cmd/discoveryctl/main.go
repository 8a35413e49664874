// Command discoveryctl is the operator tool for inspecting a running
// discovery process's on-disk state: the crawl WAL and the snapshot cache.
package main

func main() {
	Execute()
}
