// Command glaucoscan runs the glaucoma screening wizard as an HTTP service,
// an MCP server or a one-shot terminal scan.
package main

func main() {
	Execute()
}
