package main

// @title           Sercha Recall API
// @version         1.0
// @description     Retrieval-augmented answers over a structured profile, with a semantic answer cache.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-recall/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
