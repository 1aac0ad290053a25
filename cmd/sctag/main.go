// Command sctag embeds track metadata into downloaded audio files.
package main

func main() {
	execute()
}
