package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

var (
	queryTopK    int
	queryFilters []string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search indexed chunks",
	Long: `Runs a semantic query against the index. Filters are exact matches on
metadata, given as key=value; repeat --filter to combine them.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (1-20, default from config)")
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "metadata filter key=value")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	req := entities.QueryRequest{Query: args[0], Filters: filter}
	if cmd.Flags().Changed("top-k") {
		req.TopK = &queryTopK
	}

	results, err := svc.query.Query(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(map[string]any{"results": results}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []entities.Result) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, r.ChunkID, r.Score)
		if cat, ok := r.Meta[entities.MetaCategory].(string); ok {
			cmd.Printf("      category: %s\n", cat)
		}
		cmd.Printf("      %s\n\n", snippet(r.Text, 200))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// parseFilters turns key=value pairs into an equality filter. Values that
// parse as integers or floats, and the literals true and false, are typed accordingly.
func parseFilters(pairs []string) (entities.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(entities.Filter, len(pairs))
	for _, p := range pairs {
		key, value, found := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("%w: filter %q is not key=value", entities.ErrInvalidInput, p)
		}
		filter[key] = filterValue(value)
	}
	return filter, nil
}

func filterValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
