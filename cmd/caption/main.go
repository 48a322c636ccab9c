// Command caption trains and evaluates an image captioning model over the
// Flickr caption datasets.
package main

import "github.com/born-ml/caption/cmd/caption/cmd"

func main() {
	cmd.Execute()
}
