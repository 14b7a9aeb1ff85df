// Command makelist builds a trawl input list from two common source shapes:
// a ranked-domain CSV (rank,domain per line) labelled 0, and a URL feed
// (CSV with the URL first, or one URL per line) labelled 1.
//
// Usage:
//
//	go run scripts/makelist/main.go -benign top-1m.csv -feed feed.csv -out input.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/webtrawl/trawl/dataset"
)

// CLI flags
var (
	benignPath = flag.String("benign", "", "ranked-domain CSV (rank,domain), labelled 0")
	feedPath   = flag.String("feed", "", "URL feed (CSV url column or one URL per line), labelled 1")
	outPath    = flag.String("out", "input.csv", "output list path")
	maxBenign  = flag.Int("max-benign", 0, "cap on benign entries, 0 means all")
	maxFeed    = flag.Int("max-feed", 0, "cap on feed entries, 0 means all")
	shuffle    = flag.Bool("shuffle", false, "shuffle the merged list")
	seed       = flag.Int64("seed", 42, "shuffle seed")
)

type entry struct {
	url   string
	label int
}

func main() {
	flag.Parse()

	if *benignPath == "" && *feedPath == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of -benign or -feed is required")
		flag.Usage()
		os.Exit(1)
	}

	fmt.Println("=== Trawl List Builder ===")

	var merged []entry
	seen := map[string]struct{}{}
	var dupes int

	add := func(raw string, label int) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		// Normalize exactly the way the loader will, or the dedupe here
		// and the duplicate tally there would disagree.
		u := dataset.NormalizeURL(raw)
		if _, ok := seen[u]; ok {
			dupes++
			return
		}
		seen[u] = struct{}{}
		merged = append(merged, entry{url: u, label: label})
	}

	if *benignPath != "" {
		domains, err := readRankedDomains(*benignPath, *maxBenign)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *benignPath, err)
			os.Exit(1)
		}
		for _, d := range domains {
			add(d, 0)
		}
		fmt.Printf("Benign:  %d domains from %s\n", len(domains), *benignPath)
	}

	if *feedPath != "" {
		urls, err := readURLFeed(*feedPath, *maxFeed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *feedPath, err)
			os.Exit(1)
		}
		for _, u := range urls {
			add(u, 1)
		}
		fmt.Printf("Feed:    %d URLs from %s\n", len(urls), *feedPath)
	}

	if len(merged) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no usable entries in the sources")
		os.Exit(1)
	}

	if *shuffle {
		r := rand.New(rand.NewSource(*seed))
		r.Shuffle(len(merged), func(i, j int) {
			merged[i], merged[j] = merged[j], merged[i]
		})
		fmt.Printf("Shuffled with seed %d\n", *seed)
	}

	if err := writeList(*outPath, merged); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Dropped: %d duplicates\n", dupes)
	fmt.Printf("Written: %d entries to %s\n", len(merged), *outPath)
}

// readRankedDomains parses rank,domain rows. Header rows and malformed
// lines are skipped rather than fatal: ranking dumps are messy and the
// list builder's job is to salvage what it can.
func readRankedDomains(path string, max int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) < 2 {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(rec[0])); err != nil {
			continue // header or junk
		}
		domain := strings.TrimSpace(rec[1])
		if domain == "" {
			continue
		}
		out = append(out, domain)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// readURLFeed parses a feed in either common shape: a CSV with the URL in
// the first column (a PhishTank export), or plain text with one URL per
// line. Header rows and # comments are skipped.
func readURLFeed(path string, max int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comment = '#'

	var out []string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		u := strings.TrimSpace(rec[0])
		if u == "" || strings.EqualFold(u, "url") {
			continue
		}
		out = append(out, u)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func writeList(path string, entries []entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"url", "label"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.url, strconv.Itoa(e.label)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
