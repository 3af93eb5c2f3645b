package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/nraw/gamescanner/pkg/search"
)

func main() {
	// Usage: go run main.go -query "5901234123457" [-provider brave -key "your_brave_key"]

	queryFlag := flag.String("query", "", "Barcode or game name to resolve")
	providerFlag := flag.String("provider", "duckduckgo", "Search provider: brave, google or duckduckgo")
	keyFlag := flag.String("key", "", "API key for brave or google")
	cxFlag := flag.String("cx", "", "Google custom search engine id")

	flag.Parse()

	if *queryFlag == "" {
		fmt.Println("Query is required. Please provide it using the -query flag.")
		return
	}

	// All providers share the same interface, only their credentials differ
	provider, err := search.New(search.Config{
		Provider:     *providerFlag,
		BraveAPIKey:  *keyFlag,
		GoogleAPIKey: *keyFlag,
		GoogleCX:     *cxFlag,
		Timeout:      10 * time.Second,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	resolver, err := resolve.NewResolver(provider, resolve.Options{})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	url, err := resolver.ResolveURL(context.Background(), *queryFlag)
	switch {
	case resolve.IsNotFound(err):
		fmt.Println("No game found for", *queryFlag)
	case resolve.IsRetryable(err):
		fmt.Println("Search quota exhausted, try again later:", err)
	case err != nil:
		fmt.Println("Lookup failed:", err)
	default:
		fmt.Println(url)
	}
}
