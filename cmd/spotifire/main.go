// Command spotifire runs the Spotify listening-analytics service: the web
// dashboard, the snapshot collector, and the ETL/analysis pipeline commands.
package main

func main() {
	Execute()
}
