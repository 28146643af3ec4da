package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-hub/providers"
)

/* validate-providers - Standalone CLI tool to validate providers.yaml
 * Usage: go run cmd/validate-providers/main.go [providers.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	providersFile := "providers.yaml"
	if len(os.Args) > 1 {
		providersFile = os.Args[1]
	}

	fmt.Printf("Validating providers file: %s\n", providersFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := providers.NewLoader()
	if err := loader.Load(providersFile); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	configs, _ := loader.Configs(context.Background())
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d provider(s):\n", len(configs))

	for i, c := range configs {
		fmt.Printf("\n%d. Provider: %s\n", i+1, c.Provider)
		fmt.Printf("   Rate limit:    %d/min\n", c.RateLimit)
		fmt.Printf("   Max retries:   %d\n", c.MaxRetries)
		fmt.Printf("   Active:        %t\n", c.IsActive())
		fmt.Printf("   IP whitelist:  %s\n", listOrAny(c.IPWhitelist))
		fmt.Printf("   Events:        %s\n", listOrAny(c.Events))
		if len(c.HighPriorityEvents) > 0 {
			fmt.Printf("   High priority: %s\n", strings.Join(c.HighPriorityEvents, ", "))
		}
		if len(c.LowPriorityEvents) > 0 {
			fmt.Printf("   Low priority:  %s\n", strings.Join(c.LowPriorityEvents, ", "))
		}
	}

	fmt.Printf("\nAll providers are valid!\n")
}

func listOrAny(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	return strings.Join(values, ", ")
}
