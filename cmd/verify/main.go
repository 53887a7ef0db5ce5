// Package main checks a catalog database against the bundled administrative
// division registry before it is published.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/garyellow/weamind-linebot-go/internal/location"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// Expected registry size: 22 counties and cities with 368 townships.
const (
	expectedCounties  = 22
	expectedDivisions = 368
)

// listed caps how many offending names a result message shows.
const listed = 5

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	dbPath := flag.String("db", "", "Catalog database to verify (registry checks only when empty)")
	flag.Parse()

	fmt.Println("🔍 WeaMind - Catalog Consistency Verification Tool")
	fmt.Println("==================================================")

	registry := location.DefaultRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	results := verifyRegistry(registry)

	if *dbPath != "" {
		db, err := storage.New(context.Background(), *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to open %s: %v\n", *dbPath, err)
			os.Exit(1)
		}
		locations, err := db.ListLocations(context.Background())
		_ = db.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to read catalog: %v\n", err)
			os.Exit(1)
		}
		results = append(results, verifyCatalog(registry, locations)...)
	}

	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)

	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifyRegistry checks the bundled division dataset
func verifyRegistry(registry *location.Registry) []verifyResult {
	counties := len(registry.Counties())
	return []verifyResult{
		{
			name:    "Registry Counties Count",
			passed:  counties == expectedCounties,
			message: fmt.Sprintf("Expected %d, got %d", expectedCounties, counties),
		},
		{
			name:    "Registry Divisions Count",
			passed:  registry.Len() == expectedDivisions,
			message: fmt.Sprintf("Expected %d, got %d", expectedDivisions, registry.Len()),
		},
	}
}

// verifyCatalog checks catalog rows against the registry and the Taiwan windows.
func verifyCatalog(registry *location.Registry, locations []storage.Location) []verifyResult {
	var (
		illegal     []string
		outside     []string
		withCoords  int
		seen        = make(map[string]struct{}, len(locations))
		missingRows []string
	)

	for _, loc := range locations {
		seen[loc.FullName] = struct{}{}
		if !registry.Contains(loc.FullName) {
			illegal = append(illegal, loc.FullName)
		}
		if loc.HasCoordinates() {
			withCoords++
			if !location.InTaiwan(*loc.Latitude, *loc.Longitude) {
				outside = append(outside, loc.FullName)
			}
		}
	}

	for _, county := range registry.Counties() {
		for _, district := range registry.Districts(county) {
			if _, ok := seen[county+district]; !ok {
				missingRows = append(missingRows, county+district)
			}
		}
	}

	return []verifyResult{
		{
			name:    "Catalog Not Empty",
			passed:  len(locations) > 0,
			message: fmt.Sprintf("%d locations", len(locations)),
		},
		{
			name:    "Catalog Names Are Legal Divisions",
			passed:  len(illegal) == 0,
			message: describe(illegal, "all names found in registry"),
		},
		{
			name:    "Catalog Coordinates Inside Taiwan",
			passed:  len(outside) == 0,
			message: describe(outside, fmt.Sprintf("%d of %d locations have coordinates", withCoords, len(locations))),
		},
		{
			// Informational: divisions without a row are rejected as unknown locations.
			name:    "Registry Coverage",
			passed:  true,
			message: describe(missingRows, "every division has a catalog row"),
		},
	}
}

// describe lists the first few names, or returns ok when there are none.
func describe(names []string, ok string) string {
	if len(names) == 0 {
		return ok
	}
	shown := names
	if len(shown) > listed {
		shown = shown[:listed]
	}
	msg := fmt.Sprintf("%d: %s", len(names), strings.Join(shown, ", "))
	if len(names) > listed {
		msg += ", ..."
	}
	return msg
}
